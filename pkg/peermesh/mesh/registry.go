package mesh

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Match carries the capture data from a matched fqdn pattern. It is opaque to
// the executor and passed through to rule handlers. Key "name" holds the full
// matched fqdn; the text matched by each '*' wildcard is stored under its
// 1-based position ("1", "2", ...).
type Match map[string]string

// Name returns the full matched fqdn.
func (m Match) Name() string { return m["name"] }

// Capture returns the text matched by the i-th wildcard (1-based).
func (m Match) Capture(i int) string { return m[strconv.Itoa(i)] }

// Int returns the i-th wildcard capture parsed as an integer, or def if the
// capture is absent or not numeric.
func (m Match) Int(i int, def int) int {
	v, err := strconv.Atoi(m.Capture(i))
	if err != nil {
		return def
	}
	return v
}

// ============================================================================
// Rule contexts and handlers
// ============================================================================

// GlobalContext binds a matched global rule to the executing device. The
// handler populates the embedded GlobalFragment.
type GlobalContext struct {
	Matched Match
	Device  Device
	GlobalFragment
}

// DirectPeer is the handler-visible context for one side of a direct rule
// match. Ports holds the local interface names participating in the physical
// connection, in storage order.
type DirectPeer struct {
	Matched Match
	Device  Device
	Ports   []string
	PeerFragment
}

// IndirectPeer is the handler-visible context for one side of an indirect
// rule match. Indirect peers need not be physically connected, so no ports
// are attached.
type IndirectPeer struct {
	Matched Match
	Device  Device
	PeerFragment
}

// GlobalHandler populates device-level options for a matched global rule.
type GlobalHandler func(opts *GlobalContext)

// DirectHandler populates both sides of a matched direct rule. Arguments are
// in pattern order: left is the side matched by the left name pattern.
type DirectHandler func(left, right *DirectPeer, session *Session)

// IndirectHandler populates both sides of a matched indirect rule, in
// pattern order.
type IndirectHandler func(left, right *IndirectPeer, session *Session)

// ============================================================================
// Matched rules
// ============================================================================

// GlobalRule is a matched global rule as returned by a registry lookup.
type GlobalRule struct {
	Matched Match
	Handler GlobalHandler
}

// DirectRule is a matched direct rule. DirectOrder is true when the left
// pattern matched the executing device and the right pattern the neighbor;
// false when the match was the other way around. NameLeft and NameRight are
// the concrete fqdns bound to each pattern.
type DirectRule struct {
	MatchedLeft  Match
	MatchedRight Match
	NameLeft     string
	NameRight    string
	DirectOrder  bool
	Handler      DirectHandler
}

// IndirectRule is a matched indirect rule, with the same orientation
// semantics as DirectRule.
type IndirectRule struct {
	MatchedLeft  Match
	MatchedRight Match
	NameLeft     string
	NameRight    string
	DirectOrder  bool
	Handler      IndirectHandler
}

// RuleRegistry returns the matched rules for a device, in priority order.
// Order is significant to merge outcomes and must be preserved.
type RuleRegistry interface {
	// LookupGlobal returns rules with no peer matching.
	LookupGlobal(fqdn string) []GlobalRule

	// LookupDirect returns rules matching the device against one of the
	// given topologically adjacent names.
	LookupDirect(fqdn string, neighbors []string) []DirectRule

	// LookupIndirect returns rules matching the device against any
	// inventory name.
	LookupIndirect(fqdn string, all []string) []IndirectRule
}

// ============================================================================
// Registry — registration-order rule registry with glob fqdn patterns
// ============================================================================

// Registry is a RuleRegistry whose rules are registered in code. Rule
// priority is registration order. Patterns are glob-style fqdns where each
// '*' matches a run of characters within one dns label and is captured into
// the Match by position.
type Registry struct {
	globals   []globalEntry
	directs   []pairEntry[DirectHandler]
	indirects []pairEntry[IndirectHandler]
}

type globalEntry struct {
	pattern string
	re      *regexp.Regexp
	handler GlobalHandler
}

type pairEntry[H any] struct {
	left    string
	right   string
	leftRe  *regexp.Regexp
	rightRe *regexp.Regexp
	handler H
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Global registers a global rule. Panics on an invalid pattern; patterns are
// authored in code, so this is a programmer error.
func (r *Registry) Global(pattern string, h GlobalHandler) {
	r.globals = append(r.globals, globalEntry{
		pattern: pattern,
		re:      compilePattern(pattern),
		handler: h,
	})
}

// Direct registers a direct rule matching two topologically connected
// devices, left pattern against right pattern.
func (r *Registry) Direct(left, right string, h DirectHandler) {
	r.directs = append(r.directs, pairEntry[DirectHandler]{
		left: left, right: right,
		leftRe: compilePattern(left), rightRe: compilePattern(right),
		handler: h,
	})
}

// Indirect registers an indirect rule matching two devices regardless of
// physical connectivity.
func (r *Registry) Indirect(left, right string, h IndirectHandler) {
	r.indirects = append(r.indirects, pairEntry[IndirectHandler]{
		left: left, right: right,
		leftRe: compilePattern(left), rightRe: compilePattern(right),
		handler: h,
	})
}

// LookupGlobal implements RuleRegistry.
func (r *Registry) LookupGlobal(fqdn string) []GlobalRule {
	var rules []GlobalRule
	for _, e := range r.globals {
		if m, ok := matchFQDN(e.re, fqdn); ok {
			rules = append(rules, GlobalRule{Matched: m, Handler: e.handler})
		}
	}
	return rules
}

// LookupDirect implements RuleRegistry. For each registered rule the
// candidates are probed in the given order; the left-matches-device
// orientation wins when both orientations apply.
func (r *Registry) LookupDirect(fqdn string, neighbors []string) []DirectRule {
	var rules []DirectRule
	for _, e := range r.directs {
		for _, cand := range neighbors {
			if cand == fqdn {
				continue
			}
			if ml, mr, order, ok := e.orient(fqdn, cand); ok {
				nameLeft, nameRight := fqdn, cand
				if !order {
					nameLeft, nameRight = cand, fqdn
				}
				rules = append(rules, DirectRule{
					MatchedLeft: ml, MatchedRight: mr,
					NameLeft: nameLeft, NameRight: nameRight,
					DirectOrder: order,
					Handler:     e.handler,
				})
			}
		}
	}
	return rules
}

// LookupIndirect implements RuleRegistry.
func (r *Registry) LookupIndirect(fqdn string, all []string) []IndirectRule {
	var rules []IndirectRule
	for _, e := range r.indirects {
		for _, cand := range all {
			if cand == fqdn {
				continue
			}
			if ml, mr, order, ok := e.orient(fqdn, cand); ok {
				nameLeft, nameRight := fqdn, cand
				if !order {
					nameLeft, nameRight = cand, fqdn
				}
				rules = append(rules, IndirectRule{
					MatchedLeft: ml, MatchedRight: mr,
					NameLeft: nameLeft, NameRight: nameRight,
					DirectOrder: order,
					Handler:     e.handler,
				})
			}
		}
	}
	return rules
}

// orient matches the (device, candidate) pair against the entry's pattern
// pair in both orientations. Returns the left and right matches, the
// orientation flag (true when left matched the device) and whether any
// orientation applied.
func (e pairEntry[H]) orient(fqdn, cand string) (left, right Match, order, ok bool) {
	if ml, lok := matchFQDN(e.leftRe, fqdn); lok {
		if mr, rok := matchFQDN(e.rightRe, cand); rok {
			return ml, mr, true, true
		}
	}
	if ml, lok := matchFQDN(e.leftRe, cand); lok {
		if mr, rok := matchFQDN(e.rightRe, fqdn); rok {
			return ml, mr, false, true
		}
	}
	return nil, nil, false, false
}

// compilePattern converts a glob-style fqdn pattern to an anchored regexp.
// Each '*' becomes a captured run of non-dot characters; everything else is
// matched literally.
func compilePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		if r == '*' {
			b.WriteString(`([^.]+)`)
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		panic(fmt.Sprintf("invalid mesh rule pattern %q: %v", pattern, err))
	}
	return re
}

// matchFQDN matches an fqdn against a compiled pattern and builds the
// capture Match.
func matchFQDN(re *regexp.Regexp, fqdn string) (Match, bool) {
	groups := re.FindStringSubmatch(fqdn)
	if groups == nil {
		return nil, false
	}
	m := Match{"name": fqdn}
	for i, g := range groups[1:] {
		m[strconv.Itoa(i+1)] = g
	}
	return m, true
}
