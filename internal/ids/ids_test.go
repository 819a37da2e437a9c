package ids

import "testing"

func TestNewIsStrictlyOrdered(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("ids out of order: %s then %s", prev, next)
		}
		prev = next
	}
}
