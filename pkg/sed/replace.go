package sed

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// replTokenKind tags the pieces a parsed replacement template is built from.
type replTokenKind int

const (
	replLiteral replTokenKind = iota
	replWhole                 // &
	replGroup                 // \1-\9
	replCaseUpperOne          // \u — uppercase the next char only
	replCaseLowerOne          // \l — lowercase the next char only
	replCaseUpperAll          // \U — uppercase until \E or end
	replCaseLowerAll          // \L — lowercase until \E or end
	replCaseEnd               // \E
)

// ReplToken is one element of a parsed `s` replacement string.
type ReplToken struct {
	Kind    replTokenKind
	Literal string
	Group   int
}

// ParseReplacement turns a raw sed replacement string (delimiter already
// stripped, but with its own backslash escapes untouched) into a token
// template. It recognizes & , \0-\9, \&, \\, and the case-folding escapes
// \l \u \L \U \E — a supplemented feature relative to the teacher's
// replacement handling (see SPEC_FULL.md §C.1).
func ParseReplacement(repl string) []ReplToken {
	var tokens []ReplToken
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, ReplToken{Kind: replLiteral, Literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(repl); i++ {
		ch := repl[i]
		if ch == '&' {
			flush()
			tokens = append(tokens, ReplToken{Kind: replWhole})
			continue
		}
		if ch == '\\' && i+1 < len(repl) {
			next := repl[i+1]
			switch {
			case next >= '0' && next <= '9':
				flush()
				tokens = append(tokens, ReplToken{Kind: replGroup, Group: int(next - '0')})
				i++
			case next == '&':
				lit.WriteByte('&')
				i++
			case next == '\\':
				lit.WriteByte('\\')
				i++
			case next == 'u':
				flush()
				tokens = append(tokens, ReplToken{Kind: replCaseUpperOne})
				i++
			case next == 'l':
				flush()
				tokens = append(tokens, ReplToken{Kind: replCaseLowerOne})
				i++
			case next == 'U':
				flush()
				tokens = append(tokens, ReplToken{Kind: replCaseUpperAll})
				i++
			case next == 'L':
				flush()
				tokens = append(tokens, ReplToken{Kind: replCaseLowerAll})
				i++
			case next == 'E':
				flush()
				tokens = append(tokens, ReplToken{Kind: replCaseEnd})
				i++
			default:
				lit.WriteByte(next)
				i++
			}
			continue
		}
		lit.WriteByte(ch)
	}
	flush()
	return tokens
}

type caseMode int

const (
	caseNone caseMode = iota
	caseUpper
	caseLower
)

// caseFolder applies \u \l \U \L \E case folding while text is appended to
// a replacement's output, one rune at a time, since the one-shot (\u \l)
// and persistent (\U \L) modes interact: a one-shot mode wins for exactly
// one rune, then the persistent mode (if any) resumes.
type caseFolder struct {
	persist caseMode
	oneShot caseMode
}

func (f *caseFolder) writeTo(buf *strings.Builder, s []byte) {
	for len(s) > 0 {
		r, size := utf8.DecodeRune(s)
		s = s[size:]
		mode := f.oneShot
		if mode == caseNone {
			mode = f.persist
		}
		f.oneShot = caseNone
		switch mode {
		case caseUpper:
			buf.WriteRune(unicode.ToUpper(r))
		case caseLower:
			buf.WriteRune(unicode.ToLower(r))
		default:
			buf.WriteRune(r)
		}
	}
}

// ExpandReplacement renders a parsed replacement template against one
// regexp match. matchIdx is the FindSubmatchIndex-style slice of
// (start,end) pairs, group 0 first, into src.
func ExpandReplacement(tokens []ReplToken, src []byte, matchIdx []int) []byte {
	var out strings.Builder
	folder := &caseFolder{}

	group := func(n int) []byte {
		if 2*n+1 >= len(matchIdx) {
			return nil
		}
		s, e := matchIdx[2*n], matchIdx[2*n+1]
		if s < 0 || e < 0 {
			return nil
		}
		return src[s:e]
	}

	for _, tok := range tokens {
		switch tok.Kind {
		case replLiteral:
			folder.writeTo(&out, []byte(tok.Literal))
		case replWhole:
			folder.writeTo(&out, group(0))
		case replGroup:
			folder.writeTo(&out, group(tok.Group))
		case replCaseUpperOne:
			folder.oneShot = caseUpper
		case replCaseLowerOne:
			folder.oneShot = caseLower
		case replCaseUpperAll:
			folder.persist = caseUpper
			folder.oneShot = caseNone
		case replCaseLowerAll:
			folder.persist = caseLower
			folder.oneShot = caseNone
		case replCaseEnd:
			folder.persist = caseNone
			folder.oneShot = caseNone
		}
	}
	return []byte(out.String())
}

// substituteResult carries back how many replacements actually happened,
// since the w/p flags and the S flag both key off of it.
type substituteResult struct {
	output []byte
	count  int
}

// Substitute applies re/tokens to patternSpace honoring the s command's
// Nth-match and global flags, including the Ng combination (replace the
// Nth match and every one after it — a supplemented feature; see
// SPEC_FULL.md §C.2).
func Substitute(re *regexp.Regexp, tokens []ReplToken, patternSpace []byte, flags SubstFlags) substituteResult {
	matches := re.FindAllSubmatchIndex(patternSpace, -1)
	if len(matches) == 0 {
		return substituteResult{output: patternSpace, count: 0}
	}

	start := 0
	if flags.NthMatch > 0 {
		start = flags.NthMatch - 1
	}
	if start >= len(matches) {
		return substituteResult{output: patternSpace, count: 0}
	}
	end := start + 1
	if flags.Global {
		end = len(matches)
	}

	var out strings.Builder
	out.Write(patternSpace[:matches[start][0]])
	for i := start; i < end; i++ {
		m := matches[i]
		out.Write(ExpandReplacement(tokens, patternSpace, m))
		if i+1 < end {
			out.Write(patternSpace[m[1]:matches[i+1][0]])
		}
	}
	out.Write(patternSpace[matches[end-1][1]:])

	return substituteResult{output: []byte(out.String()), count: end - start}
}
