package coa

import (
	"errors"
	"testing"
)

func buildChart(t *testing.T, specs ...Spec) *Chart {
	t.Helper()
	c := NewChart()
	for _, s := range specs {
		if _, err := c.Add(s); err != nil {
			t.Fatalf("Add(%s): %v", s.Code, err)
		}
	}
	return c
}

func TestAddAccountHierarchy(t *testing.T) {
	c := buildChart(t,
		Spec{Code: "4", Description: "Ingresos", Nature: NatureCredit},
		Spec{Code: "41", Description: "Operacionales", Nature: NatureCredit},
		Spec{Code: "4105", Description: "Cuotas y afiliaciones", Nature: NatureCredit},
		Spec{Code: "410505", Description: "Cuotas de afiliación", Nature: NatureCredit, PermitsPosting: true, RequiresCounterparty: true},
	)

	acc, err := c.Get("410505")
	if err != nil {
		t.Fatal(err)
	}
	if acc.ParentCode != "4105" {
		t.Fatalf("parent = %q, want 4105", acc.ParentCode)
	}
	if !acc.Postable() {
		t.Fatal("expected leaf to be postable")
	}

	parent, _ := c.Get("4105")
	if parent.ParentCode != "41" {
		t.Fatalf("parent of 4105 = %q", parent.ParentCode)
	}
	root, _ := c.Get("4")
	if root.ParentCode != "" {
		t.Fatalf("root should have no parent, got %q", root.ParentCode)
	}
}

func TestAddAccountErrors(t *testing.T) {
	c := buildChart(t, Spec{Code: "1", Description: "Activo", Nature: NatureDebit})

	if _, err := c.Add(Spec{Code: "1", Description: "dup", Nature: NatureDebit}); !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := c.Add(Spec{Code: "2105", Description: "orphan", Nature: NatureCredit}); !errors.Is(err, ErrInvalidParentCode) {
		t.Fatalf("orphan: %v", err)
	}
	if _, err := c.Add(Spec{Code: "110", Description: "odd length", Nature: NatureDebit}); !errors.Is(err, ErrInvalidCodeLength) {
		t.Fatalf("length: %v", err)
	}
	if _, err := c.Add(Spec{Code: "11A5", Description: "letters", Nature: NatureDebit}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("pattern: %v", err)
	}
	if _, err := c.Add(Spec{Code: "11", Description: "no nature"}); !errors.Is(err, ErrInvalidNature) {
		t.Fatalf("nature: %v", err)
	}
}

func TestAddChildFlipsPostableParent(t *testing.T) {
	c := buildChart(t,
		Spec{Code: "1", Description: "Activo", Nature: NatureDebit},
		Spec{Code: "11", Description: "Disponible", Nature: NatureDebit, PermitsPosting: true},
	)

	if _, err := c.Add(Spec{Code: "1105", Description: "Caja", Nature: NatureDebit, PermitsPosting: true}); err != nil {
		t.Fatalf("Add child: %v", err)
	}
	parent, _ := c.Get("11")
	if parent.PermitsPosting {
		t.Fatal("parent should have lost posting eligibility when it gained a child")
	}
}

func TestAddChildUnderPostedAccountFails(t *testing.T) {
	c := buildChart(t,
		Spec{Code: "1", Description: "Activo", Nature: NatureDebit},
		Spec{Code: "11", Description: "Disponible", Nature: NatureDebit, PermitsPosting: true},
	)
	if err := c.NotePostings("11"); err != nil {
		t.Fatalf("NotePostings: %v", err)
	}

	_, err := c.Add(Spec{Code: "1105", Description: "Caja", Nature: NatureDebit, PermitsPosting: true})
	if !errors.Is(err, ErrChildUnderPostedAccount) {
		t.Fatalf("expected ErrChildUnderPostedAccount, got %v", err)
	}
	// The posted parent must keep its shape.
	parent, _ := c.Get("11")
	if !parent.PermitsPosting {
		t.Fatal("rejected add must not flip the parent")
	}
}

func TestRetire(t *testing.T) {
	c := buildChart(t,
		Spec{Code: "1", Description: "Activo", Nature: NatureDebit},
		Spec{Code: "11", Description: "Disponible", Nature: NatureDebit},
		Spec{Code: "1105", Description: "Caja", Nature: NatureDebit, PermitsPosting: true},
		Spec{Code: "1110", Description: "Bancos", Nature: NatureDebit, PermitsPosting: true},
	)

	if err := c.Retire("11"); !errors.Is(err, ErrHasActiveChildren) {
		t.Fatalf("retire parent: %v", err)
	}

	if err := c.NotePostings("1110"); err != nil {
		t.Fatal(err)
	}
	if err := c.Retire("1110"); !errors.Is(err, ErrHasPostings) {
		t.Fatalf("retire posted leaf: %v", err)
	}

	if err := c.Retire("1105"); err != nil {
		t.Fatalf("retire clean leaf: %v", err)
	}
	acc, _ := c.Get("1105")
	if acc.Status != StatusRetired {
		t.Fatalf("status = %q", acc.Status)
	}
	if err := c.Retire("1105"); !errors.Is(err, ErrRetired) {
		t.Fatalf("double retire: %v", err)
	}
	if err := c.Retire("9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("retire unknown: %v", err)
	}
}

func TestNotePostingsAtomicity(t *testing.T) {
	c := buildChart(t,
		Spec{Code: "1", Description: "Activo", Nature: NatureDebit},
		Spec{Code: "11", Description: "Disponible", Nature: NatureDebit},
		Spec{Code: "1105", Description: "Caja", Nature: NatureDebit, PermitsPosting: true},
	)

	// One bad code rejects the whole batch and records nothing.
	if err := c.NotePostings("1105", "11"); !errors.Is(err, ErrNotPostable) {
		t.Fatalf("expected ErrNotPostable, got %v", err)
	}
	if n := c.PostingCount("1105"); n != 0 {
		t.Fatalf("posting count leaked: %d", n)
	}

	if err := c.NotePostings("1105", "1105"); err != nil {
		t.Fatal(err)
	}
	if n := c.PostingCount("1105"); n != 2 {
		t.Fatalf("posting count = %d, want 2", n)
	}
}

func TestChildrenAndList(t *testing.T) {
	c := buildChart(t,
		Spec{Code: "4", Description: "Ingresos", Nature: NatureCredit},
		Spec{Code: "42", Description: "No operacionales", Nature: NatureCredit},
		Spec{Code: "41", Description: "Operacionales", Nature: NatureCredit},
	)

	kids, err := c.Children("4")
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 2 || kids[0].Code != "41" || kids[1].Code != "42" {
		t.Fatalf("children out of order: %+v", kids)
	}
	if _, err := c.Children("7"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("children of unknown: %v", err)
	}

	all := c.List()
	if len(all) != 3 || all[0].Code != "4" {
		t.Fatalf("list out of order: %+v", all)
	}
}

func TestDeriveParent(t *testing.T) {
	cases := map[string]string{
		"4":          "",
		"41":         "4",
		"4105":       "41",
		"410505":     "4105",
		"41050510":   "410505",
		"4105051012": "41050510",
	}
	for code, want := range cases {
		if got := DeriveParent(code); got != want {
			t.Fatalf("DeriveParent(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestSeedDefaultChart(t *testing.T) {
	c := NewChart()
	if err := Seed(c); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	acc, err := c.Get("410505")
	if err != nil {
		t.Fatal(err)
	}
	if !acc.RequiresCounterparty || acc.Nature != NatureCredit || !acc.PermitsPosting {
		t.Fatalf("unexpected seeded account: %+v", acc)
	}
	// Parents of movement accounts must not be postable.
	for _, code := range []string{"1", "11", "13", "1305", "4", "41", "4105"} {
		a, err := c.Get(code)
		if err != nil {
			t.Fatalf("Get(%s): %v", code, err)
		}
		if a.PermitsPosting {
			t.Fatalf("account %s should not be postable", code)
		}
	}
}
