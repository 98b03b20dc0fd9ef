package access

import "testing"

func TestNormalizePhoneStripsFormatting(t *testing.T) {
	got := NormalizePhone("+1 (555) 123-4567")
	want := "+15551234567"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEmptyPhoneShortCircuitsAllow(t *testing.T) {
	d := evaluate([]Rule{{PhonePattern: "+1*", Type: Block}}, "", PostureAllowlist)
	if !d.Allowed {
		t.Fatal("empty phone must always be allowed")
	}
}

func TestWildcardPrefixMatchesAnyNonEmptyPhone(t *testing.T) {
	rules := []Rule{{ID: 1, PhonePattern: "+*", Type: Allow}}
	d := evaluate(rules, "+15551234567", PostureAllowlist)
	if !d.Allowed {
		t.Fatal("expected +* to match and allow")
	}
}

func TestInstanceScopedBeatsGlobal(t *testing.T) {
	rules := []Rule{
		{ID: 1, PhonePattern: "+1555*", Type: Allow, InstanceName: ""},
		{ID: 2, PhonePattern: "+1555*", Type: Block, InstanceName: "acme"},
	}
	d := evaluate(rules, "+15551234567", PostureOpen)
	if d.Allowed {
		t.Fatal("instance-scoped block should win over global allow")
	}
	if d.Matched == nil || d.Matched.ID != 2 {
		t.Fatalf("expected rule 2 to match, got %+v", d.Matched)
	}
}

func TestExactBeatsPrefix(t *testing.T) {
	rules := []Rule{
		{ID: 1, PhonePattern: "+1555*", Type: Block},
		{ID: 2, PhonePattern: "+15551234567", Type: Allow},
	}
	d := evaluate(rules, "+15551234567", PostureOpen)
	if !d.Allowed || d.Matched.ID != 2 {
		t.Fatalf("exact match should win, got %+v", d)
	}
}

func TestLongerPrefixBeatsShorter(t *testing.T) {
	rules := []Rule{
		{ID: 1, PhonePattern: "+1*", Type: Allow},
		{ID: 2, PhonePattern: "+1555*", Type: Block},
	}
	d := evaluate(rules, "+15551234567", PostureOpen)
	if d.Allowed || d.Matched.ID != 2 {
		t.Fatalf("longer, more specific prefix should win, got %+v", d)
	}
}

func TestExactBeatsPrefixOfEqualPatternLength(t *testing.T) {
	rules := []Rule{
		{ID: 1, PhonePattern: "1234", Type: Allow},
		{ID: 2, PhonePattern: "123*", Type: Block},
	}
	d := evaluate(rules, "1234", PostureOpen)
	if !d.Allowed || d.Matched.ID != 1 {
		t.Fatalf("an exact match must win even when a same-length prefix pattern also matches, got %+v", d)
	}
}

func TestDenyBeatsAllowAtSameTier(t *testing.T) {
	rules := []Rule{
		{ID: 1, PhonePattern: "+1555*", Type: Allow},
		{ID: 2, PhonePattern: "+1555*", Type: Block},
	}
	d := evaluate(rules, "+15551234567", PostureOpen)
	if d.Allowed {
		t.Fatal("block must win a tie at the same tier")
	}
}

func TestDefaultPostureAllowlistDeniesWithoutMatch(t *testing.T) {
	rules := []Rule{{ID: 1, PhonePattern: "+1444*", Type: Allow}}
	d := evaluate(rules, "+15551234567", PostureAllowlist)
	if d.Allowed {
		t.Fatal("allowlist posture with no matching rule must deny")
	}
}

func TestDefaultPostureOpenAllowsWithoutMatch(t *testing.T) {
	var rules []Rule
	d := evaluate(rules, "+15551234567", PostureOpen)
	if !d.Allowed {
		t.Fatal("open posture with no rules must allow")
	}
}

func TestValidatePatternRejectsBareWildcard(t *testing.T) {
	if err := ValidatePattern("*"); err == nil {
		t.Fatal("expected bare \"*\" to be rejected")
	}
	if err := ValidatePattern("+1555*"); err != nil {
		t.Fatalf("unexpected error for valid pattern: %v", err)
	}
}

// scenario 2 from the end-to-end properties: block rule on an instance
// denies a matching caller outright.
func TestScenarioAccessBlock(t *testing.T) {
	rules := []Rule{{ID: 1, PhonePattern: "+1555*", Type: Block, InstanceName: "acme"}}
	d := evaluate(rules, "+15551234567", PostureOpen)
	if d.Allowed {
		t.Fatal("expected access block scenario to deny")
	}
}
