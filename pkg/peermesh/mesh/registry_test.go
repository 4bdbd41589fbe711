package mesh

import (
	"testing"
)

func TestMatchFQDN_Captures(t *testing.T) {
	re := compilePattern("tor-*.dc1.example.net")

	m, ok := matchFQDN(re, "tor-12.dc1.example.net")
	if !ok {
		t.Fatal("expected match")
	}
	if m.Name() != "tor-12.dc1.example.net" {
		t.Errorf("Name = %q", m.Name())
	}
	if m.Capture(1) != "12" {
		t.Errorf("Capture(1) = %q, want 12", m.Capture(1))
	}
	if m.Int(1, 0) != 12 {
		t.Errorf("Int(1) = %d, want 12", m.Int(1, 0))
	}

	// wildcard must not cross a label boundary
	if _, ok := matchFQDN(re, "tor-1.extra.dc1.example.net"); ok {
		t.Error("wildcard crossed a dns label")
	}
	if _, ok := matchFQDN(re, "spine-1.dc1.example.net"); ok {
		t.Error("matched wrong role")
	}
}

func TestMatch_IntDefault(t *testing.T) {
	m := Match{"name": "tor-x", "1": "x"}
	if got := m.Int(1, 42); got != 42 {
		t.Errorf("Int on non-numeric capture = %d, want default 42", got)
	}
	if got := m.Int(9, 7); got != 7 {
		t.Errorf("Int on missing capture = %d, want default 7", got)
	}
}

func TestLookupGlobal_RegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	var order []int
	reg.Global("tor-*", func(g *GlobalContext) { order = append(order, 1) })
	reg.Global("*-1", func(g *GlobalContext) { order = append(order, 2) })
	reg.Global("spine-*", func(g *GlobalContext) { order = append(order, 3) })

	rules := reg.LookupGlobal("tor-1")
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	for _, r := range rules {
		r.Handler(&GlobalContext{Matched: r.Matched})
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("handler order = %v, want [1 2]", order)
	}
}

func TestLookupDirect_Orientation(t *testing.T) {
	reg := NewRegistry()
	reg.Direct("tor-*", "spine-*", func(l, r *DirectPeer, s *Session) {})

	// Executing the tor: left pattern matches the device.
	rules := reg.LookupDirect("tor-1", []string{"spine-1"})
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	r := rules[0]
	if !r.DirectOrder {
		t.Error("DirectOrder = false, want true")
	}
	if r.NameLeft != "tor-1" || r.NameRight != "spine-1" {
		t.Errorf("names = (%q, %q)", r.NameLeft, r.NameRight)
	}
	if r.MatchedLeft.Capture(1) != "1" || r.MatchedRight.Capture(1) != "1" {
		t.Errorf("captures = (%q, %q)", r.MatchedLeft.Capture(1), r.MatchedRight.Capture(1))
	}

	// Executing the spine: same rule matches swapped.
	rules = reg.LookupDirect("spine-1", []string{"tor-2"})
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	r = rules[0]
	if r.DirectOrder {
		t.Error("DirectOrder = true, want false")
	}
	if r.NameLeft != "tor-2" || r.NameRight != "spine-1" {
		t.Errorf("names = (%q, %q)", r.NameLeft, r.NameRight)
	}
}

func TestLookupDirect_CandidateOrderPreserved(t *testing.T) {
	reg := NewRegistry()
	reg.Direct("tor-*", "spine-*", func(l, r *DirectPeer, s *Session) {})

	rules := reg.LookupDirect("tor-1", []string{"spine-2", "spine-1"})
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].NameRight != "spine-2" || rules[1].NameRight != "spine-1" {
		t.Errorf("candidate order = [%q %q]", rules[0].NameRight, rules[1].NameRight)
	}
}

func TestLookupDirect_SkipsSelf(t *testing.T) {
	reg := NewRegistry()
	reg.Direct("tor-*", "tor-*", func(l, r *DirectPeer, s *Session) {})

	rules := reg.LookupDirect("tor-1", []string{"tor-1", "tor-2"})
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	if rules[0].NameRight != "tor-2" {
		t.Errorf("NameRight = %q, want tor-2", rules[0].NameRight)
	}
}

func TestLookupIndirect_MatchesNonNeighbors(t *testing.T) {
	reg := NewRegistry()
	reg.Indirect("tor-*", "rr-*", func(l, r *IndirectPeer, s *Session) {})

	rules := reg.LookupIndirect("tor-1", []string{"tor-1", "tor-2", "spine-1", "rr-1", "rr-2"})
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].NameRight != "rr-1" || rules[1].NameRight != "rr-2" {
		t.Errorf("targets = [%q %q]", rules[0].NameRight, rules[1].NameRight)
	}
}
