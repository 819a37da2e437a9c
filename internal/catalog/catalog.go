// Package catalog exposes the back-office catalogs the ledger consults but
// does not own: cost centers and counterparties (members, donors, vendors).
// The ledger only ever asks whether an identifier resolves to an active record.
package catalog

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("catalog entry not found")

// CostCenter is an organizational dimension tagged on every posting line.
type CostCenter struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Counterparty is an external party some accounts require on posting lines.
type Counterparty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"` // member, donor, vendor
}

// CostCenters looks up cost centers by identifier.
type CostCenters interface {
	CostCenter(ctx context.Context, id string) (CostCenter, error)
}

// Counterparties looks up counterparties by identifier.
type Counterparties interface {
	Counterparty(ctx context.Context, id string) (Counterparty, error)
}

// InMemory serves both catalogs from seeded maps. Used by tests, the demo
// mode of the API binary, and anywhere the back-office database is absent.
type InMemory struct {
	mu             sync.RWMutex
	costCenters    map[string]CostCenter
	counterparties map[string]Counterparty
}

func NewInMemory() *InMemory {
	return &InMemory{
		costCenters:    make(map[string]CostCenter),
		counterparties: make(map[string]Counterparty),
	}
}

func (m *InMemory) AddCostCenter(cc CostCenter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costCenters[cc.ID] = cc
}

func (m *InMemory) AddCounterparty(cp Counterparty) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counterparties[cp.ID] = cp
}

func (m *InMemory) CostCenter(ctx context.Context, id string) (CostCenter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cc, ok := m.costCenters[id]
	if !ok {
		return CostCenter{}, ErrNotFound
	}
	return cc, nil
}

func (m *InMemory) Counterparty(ctx context.Context, id string) (Counterparty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.counterparties[id]
	if !ok {
		return Counterparty{}, ErrNotFound
	}
	return cp, nil
}

// SeedDemo loads the handful of records the DSN-less demo mode needs.
func (m *InMemory) SeedDemo() {
	m.AddCostCenter(CostCenter{ID: "01", Name: "Administración", Active: true})
	m.AddCostCenter(CostCenter{ID: "02", Name: "Proyectos", Active: true})
	m.AddCounterparty(Counterparty{ID: "M-0001", Name: "Afiliado de prueba", Kind: "member"})
	m.AddCounterparty(Counterparty{ID: "D-0001", Name: "Donante de prueba", Kind: "donor"})
}
