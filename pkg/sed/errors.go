package sed

import "fmt"

// ScriptParseError reports a syntax error at a byte offset within the
// concatenated script text (all -e/-f fragments joined by newlines).
type ScriptParseError struct {
	Offset int
	Msg    string
}

func (e *ScriptParseError) Error() string {
	return fmt.Sprintf("-e expression #1, char %d: %s", e.Offset, e.Msg)
}

// UndefinedLabel reports a b/t/T command that names a label with no
// matching `:label` anywhere in the program.
type UndefinedLabel struct {
	Name string
}

func (e *UndefinedLabel) Error() string {
	return fmt.Sprintf("can't find label for jump to `%s'", e.Name)
}

// UnknownCommand reports an unrecognized command letter encountered while
// parsing a script.
type UnknownCommand struct {
	Cmd    byte
	Offset int
}

func (e *UnknownCommand) Error() string {
	return fmt.Sprintf("unknown command: `%c'", e.Cmd)
}

// RegexCompileError wraps a failure to compile a translated BRE/ERE pattern.
type RegexCompileError struct {
	Source string
	Err    error
}

func (e *RegexCompileError) Error() string {
	return fmt.Sprintf("invalid regex %q: %v", e.Source, e.Err)
}

func (e *RegexCompileError) Unwrap() error { return e.Err }

// InputOpenError wraps a failure to open a named input file.
type InputOpenError struct {
	Path string
	Err  error
}

func (e *InputOpenError) Error() string {
	return fmt.Sprintf("can't read %s: %v", e.Path, e.Err)
}

func (e *InputOpenError) Unwrap() error { return e.Err }

// InputReadError wraps a failure reading from an already-open input source.
type InputReadError struct {
	Path string
	Err  error
}

func (e *InputReadError) Error() string {
	return fmt.Sprintf("read error on %s: %v", e.Path, e.Err)
}

func (e *InputReadError) Unwrap() error { return e.Err }

// OutputWriteError wraps a failure writing output, either to the primary
// sink or to a w/W-command file.
type OutputWriteError struct {
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("couldn't write to %s: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error { return e.Err }

// SandboxViolation reports an attempt to use a capability disabled by
// --sandbox: the `e` command, the s///e flag, or a script-named r/R/w/W file.
type SandboxViolation struct {
	Command string
}

func (e *SandboxViolation) Error() string {
	return fmt.Sprintf("command %q disallowed in sandbox mode", e.Command)
}

// ShellExecError wraps a failure to run a shell command from the `e`
// command or the s///e flag.
type ShellExecError struct {
	Cmd string
	Err error
}

func (e *ShellExecError) Error() string {
	return fmt.Sprintf("couldn't exec %q: %v", e.Cmd, e.Err)
}

func (e *ShellExecError) Unwrap() error { return e.Err }

// InPlaceError wraps a failure during -i in-place editing (temp file
// creation, backup, or final rename).
type InPlaceError struct {
	Path string
	Err  error
}

func (e *InPlaceError) Error() string {
	return fmt.Sprintf("couldn't edit %s in place: %v", e.Path, e.Err)
}

func (e *InPlaceError) Unwrap() error { return e.Err }
