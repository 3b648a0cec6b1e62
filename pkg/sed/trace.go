package sed

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Tracer emits structured per-cycle diagnostics for --debug/--verbose. It
// wraps logrus the way the rest of the pack does for its own diagnostic
// logging, rather than hand-rolling a second `fmt.Fprintf(stderr, ...)`
// logging convention just for this one package.
type Tracer struct {
	log     *logrus.Logger
	verbose bool
}

// NewTracer builds a Tracer writing to w. debug enables per-command trace
// lines; verbose enables the coarser Info-level entries (one per input
// source, see FileStart) used by --verbose.
// colorize forces ANSI colors on even when logrus can't detect a terminal
// itself (w is rarely os.Stderr directly once wrapped by the CLI layer's
// Stdio indirection), and disables them outright when false so piped or
// captured diagnostics stay plain text.
func NewTracer(w io.Writer, debug, verbose, colorize bool) *Tracer {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, ForceColors: colorize, DisableColors: !colorize})
	if debug {
		log.SetLevel(logrus.DebugLevel)
	} else if verbose {
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return &Tracer{log: log, verbose: verbose || debug}
}

// Cycle logs the start of a new cycle: the line number and the incoming
// pattern space.
func (t *Tracer) Cycle(line int, patternSpace []byte) {
	t.log.WithFields(logrus.Fields{"line": line}).Debugf("cycle start: %q", patternSpace)
}

// Command logs a single instruction about to execute.
func (t *Tracer) Command(ip int, code byte) {
	t.log.WithFields(logrus.Fields{"ip": ip}).Debugf("exec %c", code)
}

// FileStart logs the beginning of processing for a named input source,
// used by --verbose.
func (t *Tracer) FileStart(name string) {
	t.log.WithFields(logrus.Fields{"file": name}).Info("processing file")
}
