package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestInMemoryLookups(t *testing.T) {
	m := NewInMemory()
	m.SeedDemo()
	ctx := context.Background()

	cc, err := m.CostCenter(ctx, "01")
	if err != nil {
		t.Fatalf("CostCenter: %v", err)
	}
	if !cc.Active {
		t.Fatal("expected seeded cost center to be active")
	}

	if _, err := m.CostCenter(ctx, "99"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cp, err := m.Counterparty(ctx, "M-0001")
	if err != nil {
		t.Fatalf("Counterparty: %v", err)
	}
	if cp.Kind != "member" {
		t.Fatalf("unexpected kind %q", cp.Kind)
	}

	if _, err := m.Counterparty(ctx, "X-0000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGCostCenter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, name, active from cost_centers").
		WithArgs("01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).AddRow("01", "Administración", true))

	p := NewPG(db)
	cc, err := p.CostCenter(context.Background(), "01")
	if err != nil {
		t.Fatalf("CostCenter: %v", err)
	}
	if cc.Name != "Administración" {
		t.Fatalf("unexpected name %q", cc.Name)
	}

	mock.ExpectQuery("select id, name, active from cost_centers").
		WithArgs("77").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}))
	if _, err := p.CostCenter(context.Background(), "77"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGCounterparty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, name, kind from counterparties").
		WithArgs("M-0021").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "kind"}).AddRow("M-0021", "María Pérez", "member"))

	p := NewPG(db)
	cp, err := p.Counterparty(context.Background(), "M-0021")
	if err != nil {
		t.Fatalf("Counterparty: %v", err)
	}
	if cp.Kind != "member" {
		t.Fatalf("unexpected kind %q", cp.Kind)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
