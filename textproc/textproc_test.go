package textproc

import (
	"reflect"
	"testing"
)

func TestCleanDefaultRules(t *testing.T) {
	p := Processor{}
	cases := []struct {
		in   string
		want string
	}{
		{"Total :  $ 40", "Total: $40"},
		{"I1em 5", "Item 5"},
		{"Subtotal - 40", "Subtotal-40"},
		{"  spaced   out  ", "spaced out"},
		{"already clean", "already clean"},
	}
	for _, tc := range cases {
		got := p.Clean([]string{tc.in})
		if len(got) != 1 || got[0] != tc.want {
			t.Errorf("Clean(%q) = %v, want [%q]", tc.in, got, tc.want)
		}
	}
}

func TestCleanDropsEmptyLines(t *testing.T) {
	p := Processor{}
	got := p.Clean([]string{"keep", "   ", "", "\t"})
	if !reflect.DeepEqual(got, []string{"keep"}) {
		t.Fatalf("Clean = %v, want [keep]", got)
	}
}

func TestCleanPreservesOrder(t *testing.T) {
	p := Processor{}
	got := p.Clean([]string{"b", "a", "c"})
	if !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("Clean reordered lines: %v", got)
	}
}

func TestCleanCustomRules(t *testing.T) {
	p := Processor{Rules: []Rule{{Old: "colour", New: "color"}}}
	got := p.Clean([]string{"colour scheme", "Total :  $ 40"})
	if got[0] != "color scheme" {
		t.Fatalf("custom rule not applied: %v", got)
	}
	// Custom rules replace the defaults entirely.
	if got[1] != "Total : $ 40" {
		t.Fatalf("default rules leaked into custom set: %q", got[1])
	}
}

func TestCleanDeterministic(t *testing.T) {
	p := Processor{}
	in := []string{"I1em 1  x", "Total :  $ 40"}
	first := p.Clean(in)
	for i := 0; i < 5; i++ {
		if again := p.Clean(in); !reflect.DeepEqual(first, again) {
			t.Fatalf("output changed between runs: %v vs %v", first, again)
		}
	}
}
