package sed

import (
	"context"
	"io"

	"github.com/rcarmo/go-sed/pkg/sandbox"
)

// Config is the library's entry point: build one, feed it script
// fragments and input files, and call Execute. The CLI layer
// (pkg/applets/sed) is a thin translation from flags to a Config.
type Config struct {
	// Quiet suppresses the default end-of-cycle auto-print (-n).
	Quiet bool

	// Dialect picks BRE (default) or ERE (-E/-r) for address and s-command
	// patterns.
	Dialect Dialect

	// Separate treats each input file as its own stream for line
	// numbering and the `$` address (-s). Implied by InPlace.
	Separate bool

	// Posix disables GNU extensions where their behavior would otherwise
	// differ (notably N's behavior at end-of-input).
	Posix bool

	// Terminator is the byte that ends a record (--end); -z is shorthand
	// for Terminator: 0.
	Terminator byte

	// LWidth is the default wrap width for the `l` command (-l N); 0
	// disables wrapping unless a command overrides it.
	LWidth int

	// InPlace turns on -i editing; InPlaceSuffix is the backup suffix
	// (empty means no backup kept). Only meaningful when Files names real
	// paths (not "-").
	InPlace        bool
	InPlaceSuffix  string
	FollowSymlinks bool

	// Sandbox disables the `e` command, the s///e flag, and any
	// script-named r/R/w/W auxiliary file (--sandbox).
	Sandbox bool

	// Unbuffered flushes output after every cycle instead of batching it
	// (-u); meaningful only for streaming/pipe use, not for correctness.
	Unbuffered bool

	// Debug and Verbose enable increasingly detailed Tracer output.
	Debug   bool
	Verbose bool

	// ColorDiagnostics forces (or suppresses) ANSI color in Tracer output;
	// the CLI layer sets this from a terminal check on its error stream.
	ColorDiagnostics bool

	// Stdin is consulted for "-" input names.
	Stdin io.Reader

	// Diagnostics receives Tracer/error output; defaults to io.Discard
	// via NewConfig.
	Diagnostics io.Writer

	scriptFragments []string
	files           []string
}

// NewConfig returns a Config with the documented defaults: BRE dialect,
// newline terminator, auto-print on, width 70 for `l`, stdin as the
// implicit input.
func NewConfig() *Config {
	return &Config{
		Terminator:  '\n',
		LWidth:      70,
		Diagnostics: io.Discard,
	}
}

// AddExpression appends a script fragment as if passed via -e. Multiple
// fragments are joined with newlines before parsing, matching GNU sed's
// -e/-f concatenation order.
func (c *Config) AddExpression(expr string) {
	c.scriptFragments = append(c.scriptFragments, expr)
}

// AddCommand is an alias for AddExpression, named for library callers who
// think in terms of "add this command" rather than "pass this -e flag".
func (c *Config) AddCommand(expr string) {
	c.AddExpression(expr)
}

// ClearCommands discards every script fragment added so far.
func (c *Config) ClearCommands() {
	c.scriptFragments = nil
}

// AddFile appends a path to the list of input files. "-" means stdin.
func (c *Config) AddFile(path string) {
	c.files = append(c.files, path)
}

// ClearFiles discards every input file added so far.
func (c *Config) ClearFiles() {
	c.files = nil
}

// Execute parses the accumulated script and runs it over the accumulated
// files, writing output to w (ignored when InPlace is set, since each
// file's own contents become the sink). It honors ctx cancellation between
// cycles.
func (c *Config) Execute(ctx context.Context, w io.Writer) (int, error) {
	parse := Parse
	if c.Sandbox {
		parse = ParseSandboxed
	}
	prog, err := parse(joinFragments(c.scriptFragments), c.Dialect, c.Posix)
	if err != nil {
		return ExitFailureCode, err
	}

	if c.Sandbox {
		// Note whether extra I/O was already denied so a nested Execute
		// call from a library caller doesn't clobber an outer sandbox.
		prevDenied := sandbox.ExtraIODenied()
		sandbox.DenyExtraIO()
		if !prevDenied {
			defer sandbox.AllowExtraIO()
		}
	}

	files := c.files
	if len(files) == 0 {
		files = []string{"-"}
	}

	eng := NewEngine(prog, c)

	if c.InPlace {
		return eng.RunInPlace(ctx, files)
	}
	return eng.Run(ctx, files, w)
}

func joinFragments(frags []string) string {
	out := ""
	for i, f := range frags {
		if i > 0 {
			out += "\n"
		}
		out += f
	}
	return out
}

// ExitFailureCode mirrors core.ExitFailure so that pkg/sed does not import
// pkg/core; pkg/applets/sed returns it unchanged as the exit code.
const ExitFailureCode = 1
