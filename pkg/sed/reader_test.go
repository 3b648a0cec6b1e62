package sed

import (
	"strings"
	"testing"
)

func TestReaderBasicSequence(t *testing.T) {
	r := NewReader(strings.NewReader("one\ntwo\nthree\n"), nil, '\n', false)
	var got []string
	for {
		rec, ok, err := r.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(rec))
	}
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestReaderLastRecordNoTrailingTerminator(t *testing.T) {
	r := NewReader(strings.NewReader("only line"), nil, '\n', false)
	rec, ok, err := r.Next()
	if err != nil || !ok {
		t.Fatalf("unexpected result: %v %v", ok, err)
	}
	if string(rec) != "only line" {
		t.Fatalf("rec = %q", rec)
	}
	if r.LastHadTerminator() {
		t.Fatalf("expected no trailing terminator")
	}
	if !r.IsLastRecord() {
		t.Fatalf("expected this to be the last record")
	}
}

func TestReaderIsLastRecordNonSeparate(t *testing.T) {
	r := NewReader(strings.NewReader("a\nb\n"), nil, '\n', false)
	r.Next()
	if r.IsLastRecord() {
		t.Fatalf("first of two records should not be last")
	}
	r.Next()
	if !r.IsLastRecord() {
		t.Fatalf("second of two records should be last")
	}
}

func TestReaderCustomTerminator(t *testing.T) {
	r := NewReader(strings.NewReader("a\x00b\x00c\x00"), nil, 0, false)
	var got []string
	for {
		rec, ok, _ := r.Next()
		if !ok {
			break
		}
		got = append(got, string(rec))
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %v", got)
	}
}
