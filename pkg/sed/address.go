package sed

import "regexp"

// AddressKind distinguishes the forms an address can take.
type AddressKind int

const (
	AddrNone     AddressKind = iota
	AddrLine                 // N
	AddrLast                 // $
	AddrRegex                // /re/ or \cREc
	AddrReuse                // // — reuse the last regex used anywhere
	AddrStep                 // first~step
	AddrPlus                 // addr2 only: +N relative to range start
	AddrTilde                // addr2 only: ~M, next multiple of M
	AddrZero                 // addr1 only: the literal 0, GNU's 0,/re/ extension
)

// Address is one half of a command's address (addr1 or addr2).
type Address struct {
	Kind  AddressKind
	Line  int
	Step  int
	Regex *regexp.Regexp
}

// matchContext is the per-line state an address needs to evaluate itself.
// Engine supplies it; Address never reaches back into engine internals.
type matchContext struct {
	lineNum      int
	isLast       bool
	patternSpace []byte
	lastRegex    *regexp.Regexp
}

// evalSingle evaluates an address used standalone or as addr1 of a range.
// It returns the match result and, for AddrRegex, the regex that should
// become the new "last regex" on success.
func (a *Address) evalSingle(ctx *matchContext) (bool, *regexp.Regexp) {
	switch a.Kind {
	case AddrNone:
		return true, ctx.lastRegex
	case AddrLine, AddrZero:
		return ctx.lineNum == a.Line, ctx.lastRegex
	case AddrLast:
		return ctx.isLast, ctx.lastRegex
	case AddrRegex:
		if a.Regex.Match(ctx.patternSpace) {
			return true, a.Regex
		}
		return false, ctx.lastRegex
	case AddrReuse:
		if ctx.lastRegex != nil && ctx.lastRegex.Match(ctx.patternSpace) {
			return true, ctx.lastRegex
		}
		return false, ctx.lastRegex
	case AddrStep:
		if a.Step <= 0 {
			return ctx.lineNum == a.Line, ctx.lastRegex
		}
		return ctx.lineNum >= a.Line && (ctx.lineNum-a.Line)%a.Step == 0, ctx.lastRegex
	}
	return false, ctx.lastRegex
}

// evalEnd evaluates addr2 of an active range given the line the range
// started on.
func (a *Address) evalEnd(ctx *matchContext, rangeStart int) (bool, *regexp.Regexp) {
	switch a.Kind {
	case AddrLine:
		return ctx.lineNum >= a.Line, ctx.lastRegex
	case AddrLast:
		return ctx.isLast, ctx.lastRegex
	case AddrPlus:
		return ctx.lineNum >= rangeStart+a.Line, ctx.lastRegex
	case AddrTilde:
		if a.Line <= 0 {
			return true, ctx.lastRegex
		}
		return ctx.lineNum%a.Line == 0, ctx.lastRegex
	case AddrRegex:
		if a.Regex.Match(ctx.patternSpace) {
			return true, a.Regex
		}
		return false, ctx.lastRegex
	case AddrReuse:
		if ctx.lastRegex != nil && ctx.lastRegex.Match(ctx.patternSpace) {
			return true, ctx.lastRegex
		}
		return false, ctx.lastRegex
	}
	return false, ctx.lastRegex
}

// rangeState is the mutable per-command state a two-address command needs
// across cycles. The Program itself stays immutable; Engine owns a slice
// of these indexed in parallel with Program.Commands.
type rangeState struct {
	active   bool
	start    int
	zeroUsed bool // true once a `0,/re/` range has opened-and-closed; it never reopens
}

// matchCommand decides whether cmd fires on the current line, updating
// rs (the command's range state, ignored for non-range commands) and
// lastRegex as a side effect of regex address evaluation.
func matchCommand(cmd *Command, ctx *matchContext, rs *rangeState) (bool, *regexp.Regexp) {
	lastRegex := ctx.lastRegex

	if cmd.Addr1 == nil {
		return !cmd.Negated, lastRegex
	}

	if cmd.Addr2 == nil {
		ok, lr := cmd.Addr1.evalSingle(ctx)
		if cmd.Negated {
			ok = !ok
		}
		return ok, lr
	}

	// Two-address range.
	if cmd.Addr1.Kind == AddrZero && !rs.active && !rs.zeroUsed {
		// GNU extension: `0,/re/` — the range is considered already open
		// before line 1, so addr2 can match (and close the range) on the
		// very first record. It can never reopen afterward.
		rs.active = true
		rs.start = 0
		rs.zeroUsed = true
	}

	if !rs.active {
		ok, lr := cmd.Addr1.evalSingle(ctx)
		if !ok {
			return cmd.Negated, lr
		}
		lastRegex = lr
		rs.active = true
		rs.start = ctx.lineNum

		// addr1,0 and addr1,+0 style ranges close on the same line they open.
		if cmd.Addr2.Kind == AddrPlus && cmd.Addr2.Line <= 0 {
			rs.active = false
		} else if cmd.Addr2.Kind == AddrLine && cmd.Addr2.Line <= ctx.lineNum {
			rs.active = false
		} else if cmd.Addr2.Kind == AddrTilde && (cmd.Addr2.Line <= 0 || ctx.lineNum%cmd.Addr2.Line == 0) {
			// addr1,~M opened on a multiple of M is already at its end.
			rs.active = false
		}

		if cmd.Negated {
			return false, lastRegex
		}
		return true, lastRegex
	}

	endCtx := &matchContext{lineNum: ctx.lineNum, isLast: ctx.isLast, patternSpace: ctx.patternSpace, lastRegex: lastRegex}
	endMatch, lr := cmd.Addr2.evalEnd(endCtx, rs.start)
	lastRegex = lr
	if endMatch {
		rs.active = false
	}
	if cmd.Negated {
		return false, lastRegex
	}
	return true, lastRegex
}
