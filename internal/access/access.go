// Package access implements the access-rule engine: a deterministic
// allow/deny decision for a (phone, instance) pair built from global and
// per-instance prefix rules.
package access

import (
	"context"
	"errors"
	"regexp"
	"sort"
)

var (
	errBarePrefix   = errors.New("access: pattern \"*\" matches everything and is rejected at insert")
	errEmptyPattern = errors.New("access: pattern must not be empty")
)

// RuleType is the kind of an access rule.
type RuleType string

const (
	Allow RuleType = "allow"
	Block RuleType = "block"
)

// DefaultPosture controls the fallback decision when no rule matches at
// the highest specificity tier.
type DefaultPosture string

const (
	// PostureOpen allows by default when no rule decides the request.
	PostureOpen DefaultPosture = "open"
	// PostureAllowlist denies by default unless an allow rule exists.
	PostureAllowlist DefaultPosture = "allowlist"
)

// Rule is one access-control row. InstanceName is empty for a global rule.
type Rule struct {
	ID           int64
	PhonePattern string
	Type         RuleType
	InstanceName string // "" = global
}

// isGlobal reports whether the rule applies to every instance.
func (r Rule) isGlobal() bool { return r.InstanceName == "" }

// isPrefix reports whether the pattern is a prefix pattern ("+1555*").
func (r Rule) isPrefix() bool {
	return len(r.PhonePattern) > 0 && r.PhonePattern[len(r.PhonePattern)-1] == '*'
}

// prefixValue returns the pattern without its trailing '*'.
func (r Rule) prefixValue() string {
	if r.isPrefix() {
		return r.PhonePattern[:len(r.PhonePattern)-1]
	}
	return r.PhonePattern
}

// matches reports whether the rule applies to the given normalized phone.
func (r Rule) matches(phone string) bool {
	if r.isPrefix() {
		return len(phone) >= len(r.prefixValue()) && hasPrefix(phone, r.prefixValue())
	}
	return phone == r.PhonePattern
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

var nonDigit = regexp.MustCompile(`[^0-9+]`)

// ValidatePattern rejects patterns that cannot be evaluated
// meaningfully, e.g. a bare "*" which would match the empty prefix.
// AccessRuleStore.Insert (internal/store/pg) runs this before
// persisting a rule.
func ValidatePattern(pattern string) error {
	if pattern == "*" {
		return errBarePrefix
	}
	if pattern == "" {
		return errEmptyPattern
	}
	return nil
}

// NormalizePhone strips everything but digits and '+' characters. Callers
// are expected to supply an E.164-ish phone; this only removes incidental
// formatting (spaces, dashes, parens).
func NormalizePhone(phone string) string {
	return nonDigit.ReplaceAllString(phone, "")
}

// RuleStore loads the candidate rule set for an instance.
type RuleStore interface {
	// ListForInstance returns every rule scoped to instanceName or global
	// (instance_name IS NULL).
	ListForInstance(ctx context.Context, instanceName string) ([]Rule, error)
}

// Decision is the result of an access check.
type Decision struct {
	Allowed bool
	Matched *Rule // nil when no rule decided it (pure default posture)
}

// Engine evaluates access decisions against a RuleStore.
type Engine struct {
	store RuleStore
}

// New constructs an Engine backed by the given RuleStore.
func New(store RuleStore) *Engine {
	return &Engine{store: store}
}

// Check implements the algorithm: normalize, load, score by
// specificity, deny beats allow beats default posture.
func (e *Engine) Check(ctx context.Context, phone, instanceName string, posture DefaultPosture) (Decision, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return Decision{Allowed: true}, nil
	}

	rules, err := e.store.ListForInstance(ctx, instanceName)
	if err != nil {
		return Decision{}, err
	}

	return evaluate(rules, phone, posture), nil
}

// evaluate is the pure decision function — no I/O, so it is directly
// testable and satisfies "access decision is a function of the current
// rule set."
func evaluate(rules []Rule, phone string, posture DefaultPosture) Decision {
	if phone == "" {
		return Decision{Allowed: true}
	}
	var candidates []Rule
	for _, r := range rules {
		if r.matches(phone) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return Decision{Allowed: posture != PostureAllowlist}
	}

	// Specificity tiers, highest first: instance-scoped beats global;
	// within a scope, an exact match is its own tier above every prefix
	// match regardless of string length; within the prefix tier, a
	// longer prefix beats a shorter one; lowest id is the final tiebreak.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.isGlobal() != b.isGlobal() {
			return !a.isGlobal() // instance-scoped wins
		}
		if a.isPrefix() != b.isPrefix() {
			return !a.isPrefix() // exact match wins
		}
		if len(a.prefixValue()) != len(b.prefixValue()) {
			return len(a.prefixValue()) > len(b.prefixValue())
		}
		return a.ID < b.ID
	})

	top := candidates[0]
	topScope, topPrefix, topLen := !top.isGlobal(), top.isPrefix(), len(top.prefixValue())

	var blockAtTop, allowAtTop *Rule
	for i := range candidates {
		c := candidates[i]
		if !c.isGlobal() != topScope || c.isPrefix() != topPrefix || len(c.prefixValue()) != topLen {
			break // lower tier, stop scanning
		}
		switch c.Type {
		case Block:
			if blockAtTop == nil {
				blockAtTop = &candidates[i]
			}
		case Allow:
			if allowAtTop == nil {
				allowAtTop = &candidates[i]
			}
		}
	}

	if blockAtTop != nil {
		return Decision{Allowed: false, Matched: blockAtTop}
	}
	if allowAtTop != nil {
		return Decision{Allowed: true, Matched: allowAtTop}
	}
	return Decision{Allowed: posture != PostureAllowlist}
}
