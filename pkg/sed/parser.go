package sed

import (
	"regexp"
	"strconv"
	"strings"
)

// Parse turns the concatenated text of every -e/-f fragment into a
// Program: a flat instruction list (blocks resolved to jump targets
// instead of a recursive tree) plus a label table for b/t/T to resolve
// against. The grammar is hand-tokenized rather than expressed as a
// regular expression — sed script syntax is context-sensitive (the
// delimiter after `s` changes what the rest of the command means) in a
// way a single regex cannot capture, the same reason the teacher's sed
// applet hand-rolls its own scanner.
func Parse(script string, dialect Dialect, posix bool) (*Program, error) {
	return parse(script, dialect, posix, false)
}

// ParseSandboxed is Parse but additionally rejects, at parse time, any
// command --sandbox disables: e, r, R, w, W, and s///e. This mirrors GNU
// sed's own behavior of refusing such a script outright rather than
// silently skipping the command at run time.
func ParseSandboxed(script string, dialect Dialect, posix bool) (*Program, error) {
	return parse(script, dialect, posix, true)
}

func parse(script string, dialect Dialect, posix, sandboxed bool) (*Program, error) {
	p := &parser{src: script, dialect: dialect, posix: posix, sandboxed: sandboxed}

	if strings.HasPrefix(script, "#n\n") || script == "#n" {
		p.pos = len("#n")
		if p.pos < len(p.src) {
			p.pos++ // consume the newline too
		}
	}

	var cmds []Command
	var blockStack []int

	for {
		p.skipWS()
		if p.pos >= len(p.src) {
			break
		}
		if p.src[p.pos] == '#' {
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		if p.src[p.pos] == '}' {
			p.pos++
			if len(blockStack) == 0 {
				return nil, &ScriptParseError{Offset: p.pos, Msg: "unexpected `}'"}
			}
			openIdx := blockStack[len(blockStack)-1]
			blockStack = blockStack[:len(blockStack)-1]
			cmds = append(cmds, Command{Code: '}'})
			cmds[openIdx].BlockEnd = len(cmds) - 1
			continue
		}

		cmd, isOpen, err := p.parseOneCommand()
		if err != nil {
			return nil, err
		}
		if cmd == nil {
			continue
		}
		cmds = append(cmds, *cmd)
		if isOpen {
			blockStack = append(blockStack, len(cmds)-1)
		}
	}

	if len(blockStack) > 0 {
		return nil, &ScriptParseError{Offset: len(p.src), Msg: "unmatched `{'"}
	}

	labels := map[string]int{}
	for i, c := range cmds {
		if c.Code == ':' {
			labels[c.Text] = i
		}
	}
	for _, c := range cmds {
		if (c.Code == 'b' || c.Code == 't' || c.Code == 'T') && c.Text != "" {
			if _, ok := labels[c.Text]; !ok {
				return nil, &UndefinedLabel{Name: c.Text}
			}
		}
	}

	suppress := strings.HasPrefix(script, "#n\n") || script == "#n"

	return &Program{Commands: cmds, Labels: labels, SuppressAutoPrint: suppress}, nil
}

type parser struct {
	src       string
	pos       int
	dialect   Dialect
	posix     bool
	sandboxed bool
}

// compilePattern compiles pat honoring the parser's --posix strictness.
func (p *parser) compilePattern(pat string, caseFold, multiLine bool) (*regexp.Regexp, error) {
	if p.posix {
		return CompilePatternPosix(pat, p.dialect, caseFold, multiLine)
	}
	return CompilePattern(pat, p.dialect, caseFold, multiLine)
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) skipWS() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == ';') {
		p.pos++
	}
}

// parseOneCommand parses exactly one command (address(es), optional `!`,
// command letter, operands) and reports whether it opens a block (`{`),
// since the caller owns the flat block-nesting stack.
func (p *parser) parseOneCommand() (*Command, bool, error) {
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return nil, false, nil
	}

	cmd := &Command{}

	a1, err := p.parseAddress()
	if err != nil {
		return nil, false, err
	}
	cmd.Addr1 = a1

	if p.pos < len(p.src) && p.src[p.pos] == ',' {
		p.pos++
		p.skipSpaces()
		a2, err := p.parseAddr2()
		if err != nil {
			return nil, false, err
		}
		cmd.Addr2 = a2
	}

	p.skipSpaces()
	if p.pos >= len(p.src) || p.src[p.pos] == '\n' || p.src[p.pos] == ';' {
		if cmd.Addr1 != nil {
			return nil, false, &ScriptParseError{Offset: p.pos, Msg: "missing command"}
		}
		return nil, false, nil
	}

	for p.pos < len(p.src) && p.src[p.pos] == '!' {
		cmd.Negated = !cmd.Negated
		p.pos++
		p.skipSpaces()
	}

	if p.pos >= len(p.src) {
		return nil, false, &ScriptParseError{Offset: p.pos, Msg: "missing command"}
	}

	cmd.Code = p.src[p.pos]
	p.pos++

	isOpen := false
	switch cmd.Code {
	case '{':
		isOpen = true
	case 'a', 'i', 'c':
		cmd.Text = p.parseTextArg()
	case ':', 'b', 't', 'T':
		p.skipSpaces()
		cmd.Text = p.parseLabel()
	case 's':
		if err := p.parseSubstitution(cmd); err != nil {
			return nil, false, err
		}
		if p.sandboxed && cmd.Flags.Exec {
			return nil, false, &SandboxViolation{Command: "s///e"}
		}
		if p.sandboxed && cmd.Flags.WriteFile != "" {
			return nil, false, &SandboxViolation{Command: "s///w"}
		}
	case 'y':
		if err := p.parseTransliterate(cmd); err != nil {
			return nil, false, err
		}
	case 'r', 'R', 'w', 'W':
		if p.sandboxed {
			return nil, false, &SandboxViolation{Command: string(cmd.Code)}
		}
		p.skipSpaces()
		cmd.Text = p.readToLineEnd()
	case 'l':
		p.skipSpaces()
		if n, ok := p.tryReadInt(); ok {
			cmd.Width = n
			cmd.HasWidth = true
		}
	case 'q', 'Q':
		p.skipSpaces()
		if n, ok := p.tryReadInt(); ok {
			cmd.ExitCode = n
			cmd.HasExitCode = true
		}
	case 'e':
		if p.sandboxed {
			return nil, false, &SandboxViolation{Command: "e"}
		}
		p.skipSpaces()
		cmd.Text = p.readToLineEnd()
	case 'd', 'D', 'g', 'G', 'h', 'H', 'n', 'N', 'p', 'P', 'x', '=', 'z', 'F':
		// no operands
	default:
		return nil, false, &UnknownCommand{Cmd: cmd.Code, Offset: p.pos - 1}
	}
	return cmd, isOpen, nil
}

// readToLineEnd reads an r/R/w/W/e operand to the end of its line, honoring
// the same backslash-before-terminator continuation rule as a/i/c text: a
// line ending in a single (unescaped) backslash continues the operand onto
// the next line instead of ending it.
func (p *parser) readToLineEnd() string {
	var lines []string
	for {
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != '\n' {
			p.pos++
		}
		line := p.src[start:p.pos]
		if p.pos < len(p.src) && p.src[p.pos] == '\n' {
			p.pos++
		}
		if strings.HasSuffix(line, "\\") && !strings.HasSuffix(line, "\\\\") {
			lines = append(lines, line[:len(line)-1])
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t"))
		break
	}
	return strings.Join(lines, "\n")
}

func (p *parser) tryReadInt() (int, bool) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 0, false
	}
	n, _ := strconv.Atoi(p.src[start:p.pos])
	return n, true
}

// parseAddress parses addr1 (any form, including the bare `0` GNU
// extension which is only meaningful as the start of a `0,/re/` range).
func (p *parser) parseAddress() (*Address, error) {
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return nil, nil
	}
	ch := p.src[p.pos]
	switch {
	case ch == '$':
		p.pos++
		return &Address{Kind: AddrLast}, nil
	case ch >= '0' && ch <= '9':
		n, _ := p.tryReadInt()
		if p.pos < len(p.src) && p.src[p.pos] == '~' {
			p.pos++
			step, _ := p.tryReadInt()
			return &Address{Kind: AddrStep, Line: n, Step: step}, nil
		}
		if n == 0 {
			return &Address{Kind: AddrZero, Line: 0}, nil
		}
		return &Address{Kind: AddrLine, Line: n}, nil
	case ch == '/' || ch == '\\':
		return p.parseRegexAddress()
	}
	return nil, nil
}

// parseAddr2 parses the second address of a range, which additionally
// allows +N (relative) and ~M (next multiple of M).
func (p *parser) parseAddr2() (*Address, error) {
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return nil, nil
	}
	ch := p.src[p.pos]
	switch ch {
	case '+':
		p.pos++
		n, ok := p.tryReadInt()
		if !ok {
			return nil, &ScriptParseError{Offset: p.pos, Msg: "expected number after `+'"}
		}
		return &Address{Kind: AddrPlus, Line: n}, nil
	case '~':
		p.pos++
		n, ok := p.tryReadInt()
		if !ok {
			return nil, &ScriptParseError{Offset: p.pos, Msg: "expected number after `~'"}
		}
		return &Address{Kind: AddrTilde, Line: n}, nil
	}
	return p.parseAddress()
}

func (p *parser) parseRegexAddress() (*Address, error) {
	ch := p.src[p.pos]
	delim := byte('/')
	if ch == '\\' {
		p.pos++
		if p.pos >= len(p.src) {
			return nil, &ScriptParseError{Offset: p.pos, Msg: "unterminated address regex"}
		}
		delim = p.src[p.pos]
	}
	p.pos++
	pat := p.readUntilUnescaped(delim)

	caseFold, multiLine := false, false
modifiers:
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case 'I':
			caseFold = true
			p.pos++
		case 'M':
			multiLine = true
			p.pos++
		default:
			break modifiers
		}
	}

	if pat == "" {
		return &Address{Kind: AddrReuse}, nil
	}
	re, err := p.compilePattern(pat, caseFold, multiLine)
	if err != nil {
		return nil, err
	}
	return &Address{Kind: AddrRegex, Regex: re}, nil
}

func (p *parser) readUntilUnescaped(delim byte) string {
	var buf strings.Builder
	inClass := false
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '[' && !inClass {
			inClass = true
			buf.WriteByte(ch)
			p.pos++
			continue
		}
		if ch == ']' && inClass {
			inClass = false
			buf.WriteByte(ch)
			p.pos++
			continue
		}
		if ch == '\\' && !inClass && p.pos+1 < len(p.src) {
			next := p.src[p.pos+1]
			if next == delim {
				buf.WriteByte(delim)
				p.pos += 2
				continue
			}
			if next == 'n' {
				buf.WriteByte('\n')
				p.pos += 2
				continue
			}
			buf.WriteByte(ch)
			buf.WriteByte(next)
			p.pos += 2
			continue
		}
		if ch == delim && !inClass {
			p.pos++
			return buf.String()
		}
		buf.WriteByte(ch)
		p.pos++
	}
	return buf.String()
}

func (p *parser) parseTextArg() string {
	if p.pos < len(p.src) && p.src[p.pos] == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n' {
		p.pos += 2
	} else {
		p.skipSpaces()
	}
	return p.parseTextBlock()
}

func (p *parser) parseTextBlock() string {
	var lines []string
	for {
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != '\n' {
			p.pos++
		}
		line := p.src[start:p.pos]
		if p.pos < len(p.src) && p.src[p.pos] == '\n' {
			p.pos++
		}
		line = strings.ReplaceAll(line, "\\n", "\n")
		line = strings.ReplaceAll(line, "\\t", "\t")
		if strings.HasSuffix(line, "\\") && !strings.HasSuffix(line, "\\\\") {
			lines = append(lines, line[:len(line)-1])
			continue
		}
		lines = append(lines, line)
		break
	}
	return strings.Join(lines, "\n")
}

func (p *parser) parseLabel() string {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '\n' && p.src[p.pos] != ';' && p.src[p.pos] != '}' && p.src[p.pos] != ' ' && p.src[p.pos] != '\t' {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseSubstitution(cmd *Command) error {
	if p.pos >= len(p.src) {
		return &ScriptParseError{Offset: p.pos, Msg: "unterminated `s' command"}
	}
	delim := p.src[p.pos]
	p.pos++
	pattern := p.readSubstPart(delim)
	replacement := p.readSubstPart(delim)

	var flags SubstFlags
	for p.pos < len(p.src) && p.src[p.pos] != '\n' && p.src[p.pos] != ';' && p.src[p.pos] != '}' {
		ch := p.src[p.pos]
		switch ch {
		case 'g':
			flags.Global = true
			p.pos++
		case 'p':
			flags.Print = true
			p.pos++
		case 'i', 'I':
			flags.CaseFold = true
			p.pos++
		case 'm', 'M':
			flags.MultiLine = true
			p.pos++
		case 'e':
			flags.Exec = true
			p.pos++
		case 'w':
			p.pos++
			p.skipSpaces()
			flags.WriteFile = p.readToLineEnd()
		default:
			if ch >= '0' && ch <= '9' {
				n, _ := p.tryReadInt()
				flags.NthMatch = n
				continue
			}
			p.pos++
		}
	}

	if pattern != "" {
		re, err := p.compilePattern(pattern, flags.CaseFold, flags.MultiLine)
		if err != nil {
			return err
		}
		cmd.Regex = re
	}
	cmd.Replacement = ParseReplacement(replacement)
	cmd.Flags = flags
	return nil
}

// readSubstPart reads either the pattern or replacement half of an s or y
// command up to the next unescaped delimiter. Character classes are only
// delimiter-transparent in the pattern half, but treating them the same
// way in the replacement half is harmless since replacements never
// contain a meaningful unescaped `[`.
func (p *parser) readSubstPart(delim byte) string {
	var buf strings.Builder
	inClass := false
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '\\' && p.pos+1 < len(p.src) {
			next := p.src[p.pos+1]
			if next == delim {
				buf.WriteByte(delim)
				p.pos += 2
				continue
			}
			if next == '\n' {
				buf.WriteByte('\n')
				p.pos += 2
				continue
			}
			buf.WriteByte(ch)
			buf.WriteByte(next)
			p.pos += 2
			continue
		}
		if ch == '[' && !inClass {
			inClass = true
			buf.WriteByte(ch)
			p.pos++
			continue
		}
		if ch == ']' && inClass {
			inClass = false
			buf.WriteByte(ch)
			p.pos++
			continue
		}
		if ch == delim && !inClass {
			p.pos++
			return buf.String()
		}
		buf.WriteByte(ch)
		p.pos++
	}
	return buf.String()
}

func (p *parser) parseTransliterate(cmd *Command) error {
	if p.pos >= len(p.src) {
		return &ScriptParseError{Offset: p.pos, Msg: "unterminated `y' command"}
	}
	delim := p.src[p.pos]
	p.pos++
	src := p.readSubstPart(delim)
	dst := p.readSubstPart(delim)
	if len(src) != len(dst) {
		return &ScriptParseError{Offset: p.pos, Msg: "`y' source and dest strings have different lengths"}
	}
	for i := range cmd.TransMap {
		cmd.TransMap[i] = byte(i)
	}
	for i := 0; i < len(src); i++ {
		cmd.TransMap[src[i]] = dst[i]
	}
	cmd.HasTrans = true
	return nil
}
