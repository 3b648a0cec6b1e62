package sed

import "testing"

func TestParseSimpleSubstitution(t *testing.T) {
	prog, err := Parse("s/foo/bar/", DialectBRE, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prog.Commands) != 1 || prog.Commands[0].Code != 's' {
		t.Fatalf("commands = %+v", prog.Commands)
	}
}

func TestParseLeadingHashNSuppressesAutoPrint(t *testing.T) {
	prog, err := Parse("#n\np", DialectBRE, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prog.SuppressAutoPrint {
		t.Fatalf("expected #n to suppress auto-print")
	}
}

func TestParseBlockResolvesBlockEnd(t *testing.T) {
	prog, err := Parse("/foo/{s/a/b/;s/c/d/}", DialectBRE, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prog.Commands[0].Code != '{' {
		t.Fatalf("expected leading '{' command, got %+v", prog.Commands[0])
	}
	end := prog.Commands[0].BlockEnd
	if end < 0 || end >= len(prog.Commands) || prog.Commands[end].Code != '}' {
		t.Fatalf("BlockEnd = %d does not point at a '}' command", end)
	}
}

func TestParseLabelsTable(t *testing.T) {
	prog, err := Parse(":loop\ns/a/b/\nt loop", DialectBRE, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := prog.Labels["loop"]; !ok {
		t.Fatalf("expected label 'loop' to be registered, got %v", prog.Labels)
	}
}

func TestParseUnmatchedBraceIsError(t *testing.T) {
	_, err := Parse("/foo/{s/a/b/", DialectBRE, false)
	if err == nil {
		t.Fatal("expected parse error for unmatched '{'")
	}
}

func TestParseUnknownCommandIsError(t *testing.T) {
	_, err := Parse("Z", DialectBRE, false)
	if err == nil {
		t.Fatal("expected parse error for unknown command")
	}
	if _, ok := err.(*UnknownCommand); !ok {
		t.Fatalf("error = %T, want *UnknownCommand", err)
	}
}

func TestParseSandboxedRejectsExec(t *testing.T) {
	_, err := ParseSandboxed("e echo hi", DialectBRE, false)
	if err == nil {
		t.Fatal("expected sandboxed parse to reject the e command")
	}
}

func TestParseSandboxedRejectsWriteFile(t *testing.T) {
	_, err := ParseSandboxed("w /tmp/out", DialectBRE, false)
	if err == nil {
		t.Fatal("expected sandboxed parse to reject the w command")
	}
}

func TestParseSandboxedRejectsSubstituteExecFlag(t *testing.T) {
	_, err := ParseSandboxed("s/a/b/e", DialectBRE, false)
	if err == nil {
		t.Fatal("expected sandboxed parse to reject s///e")
	}
}

func TestParseSandboxedAllowsOrdinaryScript(t *testing.T) {
	_, err := ParseSandboxed("s/a/b/g", DialectBRE, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAddressRange(t *testing.T) {
	prog, err := Parse("2,4d", DialectBRE, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmd := prog.Commands[0]
	if cmd.Addr1 == nil || cmd.Addr2 == nil {
		t.Fatalf("expected both addresses to be set: %+v", cmd)
	}
}

func TestParseReadCommandOperandContinuation(t *testing.T) {
	prog, err := Parse("r foo\\\nbar", DialectBRE, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prog.Commands[0].Text != "foo\nbar" {
		t.Fatalf("Text = %q, want %q", prog.Commands[0].Text, "foo\nbar")
	}
}

func TestParseWriteCommandOperandNoContinuation(t *testing.T) {
	prog, err := Parse("w plain.txt", DialectBRE, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prog.Commands[0].Text != "plain.txt" {
		t.Fatalf("Text = %q, want %q", prog.Commands[0].Text, "plain.txt")
	}
}

func TestParseNegatedAddress(t *testing.T) {
	prog, err := Parse("2!d", DialectBRE, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prog.Commands[0].Negated {
		t.Fatalf("expected negated address")
	}
}
