package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"0.01", 1},
		{"25000.00", 2500000},
		{"24999.99", 2499999},
		{"1500", 150000},
		{"7.5", 750},
	}
	for _, c := range cases {
		got, err := ParseCents(c.in)
		if err != nil {
			t.Fatalf("ParseCents(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseCents(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseCentsRejectsSubCent(t *testing.T) {
	if _, err := ParseCents("10.001"); !errors.Is(err, ErrTooManyDecimals) {
		t.Fatalf("expected ErrTooManyDecimals, got %v", err)
	}
}

func TestParseCentsRejectsNegative(t *testing.T) {
	if _, err := ParseCents("-5.00"); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestParseCentsRejectsGarbage(t *testing.T) {
	if _, err := ParseCents("abc"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(2500000); got != "25000.00" {
		t.Fatalf("FormatCents = %q", got)
	}
	if got := FormatCents(-1); got != "-0.01" {
		t.Fatalf("FormatCents(-1) = %q", got)
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("123.45")
	cents, err := DecimalToCents(d)
	if err != nil {
		t.Fatal(err)
	}
	if cents != 12345 {
		t.Fatalf("cents = %d", cents)
	}
	if !CentsToDecimal(cents).Equal(d) {
		t.Fatalf("round trip mismatch: %s", CentsToDecimal(cents))
	}
}
