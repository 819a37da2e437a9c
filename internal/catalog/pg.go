package catalog

import (
	"context"
	"database/sql"
	"errors"
)

// PG reads the catalogs straight from the back-office tables. The ledger never
// writes to them; membership and project CRUD elsewhere in the system does.
type PG struct {
	db *sql.DB
}

func NewPG(db *sql.DB) *PG { return &PG{db: db} }

var (
	_ CostCenters    = (*PG)(nil)
	_ Counterparties = (*PG)(nil)
)

func (p *PG) CostCenter(ctx context.Context, id string) (CostCenter, error) {
	var cc CostCenter
	err := p.db.QueryRowContext(ctx, `
		select id, name, active from cost_centers where id = $1
	`, id).Scan(&cc.ID, &cc.Name, &cc.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return CostCenter{}, ErrNotFound
	}
	if err != nil {
		return CostCenter{}, err
	}
	return cc, nil
}

func (p *PG) Counterparty(ctx context.Context, id string) (Counterparty, error) {
	var cp Counterparty
	err := p.db.QueryRowContext(ctx, `
		select id, name, kind from counterparties where id = $1
	`, id).Scan(&cp.ID, &cp.Name, &cp.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return Counterparty{}, ErrNotFound
	}
	if err != nil {
		return Counterparty{}, err
	}
	return cp, nil
}
