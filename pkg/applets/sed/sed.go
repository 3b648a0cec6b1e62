// Package sed implements the CLI layer for the stream-editor engine in
// pkg/sed: flag parsing and wiring only, no editing logic of its own.
package sed

import (
	"context"
	"os"

	"github.com/rcarmo/go-sed/pkg/core"
	"github.com/rcarmo/go-sed/pkg/core/fs"
	"github.com/rcarmo/go-sed/pkg/sed"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// noSuffixSentinel distinguishes "-i given with no attached suffix" from
// "-i not given at all" across pflag's NoOptDefVal mechanism, since both
// cases otherwise leave the backing string at its zero value.
const noSuffixSentinel = "\x00"

// Run parses args as a sed invocation and executes it against stdio.
//
// Supported flags:
//
//	-n, --quiet              suppress default print
//	-e, --expression S       append S to script (repeatable)
//	-f, --file F             append contents of F to script (repeatable)
//	-i, --in-place[=SUFFIX]  edit files in place, optional backup suffix
//	    --follow-symlinks    resolve symlinks before in-place write
//	-l, --line-length N      width for the l command
//	    --posix              disable GNU extensions
//	-E, -r                   extended regex mode
//	-s, --separate           per-file line counter and $
//	    --sandbox            disable e, r, R, w, W
//	-u, --unbuffered         flush after each record
//	    --end C              record terminator byte (default \n)
//	-z, --null-data          equivalent to --end=\0
//	    --debug              annotate execution trace
//	    --verbose            verbose errors
func Run(stdio *core.Stdio, args []string) int {
	flags := pflag.NewFlagSet("sed", pflag.ContinueOnError)
	flags.SetOutput(discard{})
	flags.Usage = func() {}

	var (
		quiet          bool
		expressions    []string
		scriptFiles    []string
		inPlaceSuffix  string
		followSymlinks bool
		lwidth         int
		posixMode      bool
		extendedE      bool
		extendedR      bool
		separate       bool
		sandboxMode    bool
		unbuffered     bool
		nullData       bool
		endSpec        string
		debug          bool
		verbose        bool
	)

	flags.BoolVarP(&quiet, "quiet", "n", false, "suppress default print")
	flags.StringArrayVarP(&expressions, "expression", "e", nil, "append script (repeatable)")
	flags.StringArrayVarP(&scriptFiles, "file", "f", nil, "append script from file (repeatable)")
	flags.StringVarP(&inPlaceSuffix, "in-place", "i", "", "edit files in place, optional backup SUFFIX")
	flags.Lookup("in-place").NoOptDefVal = noSuffixSentinel
	flags.BoolVar(&followSymlinks, "follow-symlinks", false, "resolve symlinks before in-place write")
	flags.IntVarP(&lwidth, "line-length", "l", 70, "width for the l command")
	flags.BoolVar(&posixMode, "posix", false, "disable GNU extensions")
	flags.BoolVarP(&extendedE, "regexp-extended", "E", false, "use extended regular expressions")
	flags.BoolVarP(&extendedR, "ere", "r", false, "use extended regular expressions")
	flags.BoolVarP(&separate, "separate", "s", false, "treat files as separate rather than a single stream")
	flags.BoolVar(&sandboxMode, "sandbox", false, "disable e/r/R/w/W and s///e, s///w")
	flags.BoolVarP(&unbuffered, "unbuffered", "u", false, "flush output after each record")
	flags.StringVar(&endSpec, "end", "\n", "record terminator byte")
	flags.BoolVarP(&nullData, "null-data", "z", false, "use NUL as the record terminator")
	flags.BoolVar(&debug, "debug", false, "annotate the execution trace")
	flags.BoolVar(&verbose, "verbose", false, "verbose error reporting")

	if err := flags.Parse(args); err != nil {
		return core.UsageError(stdio, "sed", err.Error())
	}

	positional := flags.Args()
	if len(expressions) == 0 && len(scriptFiles) == 0 {
		if len(positional) == 0 {
			return core.UsageError(stdio, "sed", "missing script or file")
		}
		expressions = append(expressions, positional[0])
		positional = positional[1:]
	}

	inPlace := flags.Changed("in-place")
	if inPlaceSuffix == noSuffixSentinel {
		inPlaceSuffix = ""
	}
	if inPlace {
		hasRealFile := false
		for _, f := range positional {
			if f != "-" {
				hasRealFile = true
				break
			}
		}
		if !hasRealFile {
			return core.UsageError(stdio, "sed", "no input files")
		}
	}

	terminator := byte('\n')
	if nullData {
		terminator = 0
	} else if len(endSpec) > 0 {
		terminator = endSpec[0]
	}

	cfg := sed.NewConfig()
	cfg.Quiet = quiet
	if extendedE || extendedR {
		cfg.Dialect = sed.DialectERE
	}
	cfg.Separate = separate
	cfg.Posix = posixMode
	cfg.Terminator = terminator
	cfg.LWidth = lwidth
	cfg.InPlace = inPlace
	cfg.InPlaceSuffix = inPlaceSuffix
	cfg.FollowSymlinks = followSymlinks
	cfg.Sandbox = sandboxMode
	cfg.Unbuffered = unbuffered
	cfg.Debug = debug
	cfg.Verbose = verbose
	cfg.Stdin = stdio.In
	cfg.Diagnostics = stdio.Err
	cfg.ColorDiagnostics = isColorTerminal(stdio.Err)

	for _, e := range expressions {
		cfg.AddExpression(e)
	}
	for _, name := range scriptFiles {
		content, err := fs.ReadFile(name)
		if err != nil {
			return core.FileError(stdio, "sed", name, err)
		}
		cfg.AddExpression(string(content))
	}
	for _, f := range positional {
		cfg.AddFile(f)
	}

	code, err := cfg.Execute(context.Background(), stdio.Out)
	if err != nil {
		stdio.Errorf("sed: %v\n", err)
	}
	return code
}

// isColorTerminal reports whether w is a real terminal worth coloring
// --debug/--verbose trace output for, the way pkg/applets/ls decided
// whether to colorize a listing.
func isColorTerminal(w interface{}) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
