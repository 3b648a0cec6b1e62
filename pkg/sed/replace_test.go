package sed

import "testing"

func TestSubstituteAmpersand(t *testing.T) {
	re, err := CompilePattern("foo", DialectBRE, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens := ParseReplacement(`[&]`)
	result := Substitute(re, tokens, []byte("foo bar"), SubstFlags{})
	if string(result.output) != "[foo] bar" {
		t.Fatalf("output = %q", result.output)
	}
	if result.count != 1 {
		t.Fatalf("count = %d, want 1", result.count)
	}
}

func TestSubstituteGroupBackreference(t *testing.T) {
	re, err := CompilePattern(`\(foo\)\(bar\)`, DialectBRE, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens := ParseReplacement(`\2\1`)
	result := Substitute(re, tokens, []byte("foobar"), SubstFlags{})
	if string(result.output) != "barfoo" {
		t.Fatalf("output = %q", result.output)
	}
}

func TestSubstituteGlobalFlag(t *testing.T) {
	re, err := CompilePattern("a", DialectBRE, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens := ParseReplacement("X")
	result := Substitute(re, tokens, []byte("banana"), SubstFlags{Global: true})
	if string(result.output) != "bXnXnX" {
		t.Fatalf("output = %q", result.output)
	}
	if result.count != 3 {
		t.Fatalf("count = %d, want 3", result.count)
	}
}

func TestSubstituteNthMatch(t *testing.T) {
	re, err := CompilePattern("a", DialectBRE, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens := ParseReplacement("X")
	result := Substitute(re, tokens, []byte("banana"), SubstFlags{NthMatch: 2})
	if string(result.output) != "banXna" {
		t.Fatalf("output = %q", result.output)
	}
}

func TestSubstituteNthAndFollowing(t *testing.T) {
	re, err := CompilePattern("a", DialectBRE, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens := ParseReplacement("X")
	result := Substitute(re, tokens, []byte("banana"), SubstFlags{NthMatch: 2, Global: true})
	if string(result.output) != "banXnX" {
		t.Fatalf("output = %q", result.output)
	}
}

func TestSubstituteNoMatch(t *testing.T) {
	re, err := CompilePattern("zzz", DialectBRE, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens := ParseReplacement("X")
	result := Substitute(re, tokens, []byte("banana"), SubstFlags{})
	if result.count != 0 {
		t.Fatalf("count = %d, want 0", result.count)
	}
	if string(result.output) != "banana" {
		t.Fatalf("output = %q, want unchanged", result.output)
	}
}

func TestSubstituteCaseFolding(t *testing.T) {
	re, err := CompilePattern("foo", DialectBRE, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens := ParseReplacement(`\U&\E!`)
	result := Substitute(re, tokens, []byte("foo"), SubstFlags{})
	if string(result.output) != "FOO!" {
		t.Fatalf("output = %q", result.output)
	}
}
