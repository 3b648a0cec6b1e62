package sed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rcarmo/go-sed/pkg/core/fs"
	"github.com/rcarmo/go-sed/pkg/sandbox"
)

// outcome is what one cycle's program run decided to do next, modeled as
// an explicit result rather than panics/exceptions — matching the spirit
// of the teacher's own flowNormal/flowDelete/flowQuit sentinel constants,
// generalized into a proper type with the D/q/Q distinctions spec.md's
// command catalog draws.
type outcome int

const (
	outFallthrough outcome = iota
	outBranch
	outRestartCycle   // d, or D with no terminator in P
	outRestartProgram // D truncated P and restarts at ip 0, same cycle
	outQuit           // q: print (unless -n), drain A, stop the run
	outQuitSilent     // Q: stop the run immediately, no print, no drain
	outHalted         // n/N hit true EOF after already doing their own emit
)

// Engine executes one parsed Program against one or more input sources.
// Program is never mutated; all per-run state lives here instead, indexed
// in parallel with Program.Commands where a command needs it (range
// activation).
type Engine struct {
	prog *Program
	cfg  *Config

	ranges      []rangeState
	holdSpace   []byte
	lastRegex   *regexp.Regexp
	substituted bool

	writeFiles  map[string]*os.File
	readCursors map[string]*bufio.Reader
	readFiles   map[string]*os.File

	tracer *Tracer

	exitCode    int
	hasExitCode bool
}

// NewEngine builds an Engine ready to run prog under cfg.
func NewEngine(prog *Program, cfg *Config) *Engine {
	return &Engine{
		prog:        prog,
		cfg:         cfg,
		ranges:      make([]rangeState, len(prog.Commands)),
		writeFiles:  make(map[string]*os.File),
		readCursors: make(map[string]*bufio.Reader),
		readFiles:   make(map[string]*os.File),
		tracer:      NewTracer(cfg.Diagnostics, cfg.Debug, cfg.Verbose, cfg.ColorDiagnostics),
	}
}

func (e *Engine) quiet() bool {
	return e.cfg.Quiet || e.prog.SuppressAutoPrint
}

// Run streams files through the program and writes the result to w.
func (e *Engine) Run(ctx context.Context, files []string, w io.Writer) (int, error) {
	stdin := e.cfg.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	reader := NewReader(stdin, files, e.cfg.Terminator, e.cfg.Separate)

	bw := bufio.NewWriter(w)
	code, err := e.runLoop(ctx, reader, bw)
	if ferr := bw.Flush(); ferr != nil && err == nil {
		err = &OutputWriteError{Path: "<stdout>", Err: ferr}
	}
	e.closeAuxFiles()
	return code, err
}

// runLoop is the main cycle loop: pull a record, run the program against
// it, act on the outcome, repeat.
func (e *Engine) runLoop(ctx context.Context, reader *Reader, w *bufio.Writer) (int, error) {
	var appendQueue [][]byte

	for {
		select {
		case <-ctx.Done():
			return ExitFailureCode, ctx.Err()
		default:
		}

		rec, ok, err := reader.Next()
		if err != nil {
			return ExitFailureCode, err
		}
		if !ok {
			break
		}
		if reader.CurrentFileChanged() {
			e.tracer.FileStart(reader.CurrentFileName())
		}

		if e.cfg.Unbuffered {
			if err := w.Flush(); err != nil {
				return ExitFailureCode, &OutputWriteError{Path: "<stdout>", Err: err}
			}
		}

		appendQueue = appendQueue[:0]
		e.substituted = false
		pat := rec
		lineNum := reader.LineNum()
		isLast := reader.IsLastRecord()
		e.tracer.Cycle(lineNum, pat)

		cs := &cycleState{pat: pat, lineNum: lineNum, isLast: isLast}

	runProgram:
		for {
			out, err := e.runProgramOnce(ctx, cs, reader, w, &appendQueue)
			if err != nil {
				return ExitFailureCode, err
			}
			switch out {
			case outRestartProgram:
				cs.isLast = reader.IsLastRecord()
				continue runProgram
			case outRestartCycle:
				if err := e.emitCycleEnd(w, nil, false, &appendQueue); err != nil {
					return ExitFailureCode, err
				}
				break runProgram
			case outQuit:
				if err := e.emitCycleEnd(w, cs.pat, !e.quiet(), &appendQueue); err != nil {
					return ExitFailureCode, err
				}
				code := ExitFailureCode
				if e.hasExitCode {
					code = e.exitCode
				} else {
					code = 0
				}
				return code, nil
			case outQuitSilent:
				code := 0
				if e.hasExitCode {
					code = e.exitCode
				}
				return code, nil
			case outHalted:
				return 0, nil
			default: // outFallthrough: program ran to completion normally
				if err := e.emitCycleEnd(w, cs.pat, !e.quiet(), &appendQueue); err != nil {
					return ExitFailureCode, err
				}
				break runProgram
			}
		}
	}
	return 0, nil
}

type cycleState struct {
	pat     []byte
	lineNum int
	isLast  bool
}

// emitCycleEnd writes pat (if print is true) followed by the terminator,
// then drains and clears the append queue. pat may be nil to skip the
// pattern-space emission entirely (used when d/D end the cycle).
func (e *Engine) emitCycleEnd(w *bufio.Writer, pat []byte, print bool, appendQueue *[][]byte) error {
	if print && pat != nil {
		if _, err := w.Write(pat); err != nil {
			return &OutputWriteError{Path: "<stdout>", Err: err}
		}
		if err := w.WriteByte(e.cfg.Terminator); err != nil {
			return &OutputWriteError{Path: "<stdout>", Err: err}
		}
	}
	for _, a := range *appendQueue {
		if _, err := w.Write(a); err != nil {
			return &OutputWriteError{Path: "<stdout>", Err: err}
		}
	}
	*appendQueue = (*appendQueue)[:0]
	return nil
}

// runProgramOnce executes the program from ip 0 against cs until a
// terminating outcome or the end of the instruction list.
func (e *Engine) runProgramOnce(ctx context.Context, cs *cycleState, reader *Reader, w *bufio.Writer, appendQueue *[][]byte) (outcome, error) {
	cmds := e.prog.Commands
	ip := 0
	for ip < len(cmds) {
		cmd := &cmds[ip]

		matchCtx := &matchContext{lineNum: cs.lineNum, isLast: cs.isLast, patternSpace: cs.pat, lastRegex: e.lastRegex}
		matched, newLast := matchCommand(cmd, matchCtx, &e.ranges[ip])
		e.lastRegex = newLast

		if !matched {
			if cmd.Code == '{' {
				ip = cmd.BlockEnd
				continue
			}
			ip++
			continue
		}

		e.tracer.Command(ip, cmd.Code)
		out, nextIP, err := e.execOne(ctx, ip, cmd, cs, reader, w, appendQueue)
		if err != nil {
			if e.cfg.Verbose {
				err = fmt.Errorf("command #%d: %w", ip, err)
			}
			return outFallthrough, err
		}
		if err := ctx.Err(); err != nil {
			return outFallthrough, err
		}
		switch out {
		case outBranch:
			ip = nextIP
			continue
		case outFallthrough:
			ip++
			continue
		default:
			return out, nil
		}
	}
	return outFallthrough, nil
}

// execOne executes a single matched command. nextIP is only meaningful
// when the returned outcome is outBranch.
func (e *Engine) execOne(ctx context.Context, ip int, cmd *Command, cs *cycleState, reader *Reader, w *bufio.Writer, appendQueue *[][]byte) (outcome, int, error) {
	switch cmd.Code {
	case '{', '}', ':':
		return outFallthrough, 0, nil

	case 'd':
		return outRestartCycle, 0, nil
	case 'D':
		idx := bytes.IndexByte(cs.pat, e.cfg.Terminator)
		if idx < 0 {
			return outRestartCycle, 0, nil
		}
		cs.pat = cs.pat[idx+1:]
		return outRestartProgram, 0, nil

	case 'p':
		if _, err := w.Write(append(append([]byte{}, cs.pat...), e.cfg.Terminator)); err != nil {
			return outFallthrough, 0, err
		}
		return outFallthrough, 0, nil
	case 'P':
		line := cs.pat
		if idx := bytes.IndexByte(cs.pat, e.cfg.Terminator); idx >= 0 {
			line = cs.pat[:idx]
		}
		if _, err := w.Write(append(append([]byte{}, line...), e.cfg.Terminator)); err != nil {
			return outFallthrough, 0, err
		}
		return outFallthrough, 0, nil

	case 'q':
		if cmd.HasExitCode {
			e.exitCode, e.hasExitCode = cmd.ExitCode, true
		}
		return outQuit, 0, nil
	case 'Q':
		if cmd.HasExitCode {
			e.exitCode, e.hasExitCode = cmd.ExitCode, true
		}
		return outQuitSilent, 0, nil

	case 'h':
		e.holdSpace = append([]byte{}, cs.pat...)
	case 'H':
		e.holdSpace = append(append(e.holdSpace, e.cfg.Terminator), cs.pat...)
	case 'g':
		cs.pat = append([]byte{}, e.holdSpace...)
	case 'G':
		cs.pat = append(append(append([]byte{}, cs.pat...), e.cfg.Terminator), e.holdSpace...)
	case 'x':
		cs.pat, e.holdSpace = e.holdSpace, cs.pat

	case 'n':
		if err := e.emitCycleEnd(w, cs.pat, !e.quiet(), appendQueue); err != nil {
			return outFallthrough, 0, err
		}
		next, ok, err := reader.Next()
		if err != nil {
			return outFallthrough, 0, err
		}
		if !ok {
			return outHalted, 0, nil
		}
		cs.pat = next
		cs.lineNum = reader.LineNum()
		cs.isLast = reader.IsLastRecord()

	case 'N':
		next, ok, err := reader.Next()
		if err != nil {
			return outFallthrough, 0, err
		}
		if !ok {
			print := !e.quiet()
			if e.cfg.Posix {
				print = false
			}
			if err := e.emitCycleEnd(w, cs.pat, print, appendQueue); err != nil {
				return outFallthrough, 0, err
			}
			return outHalted, 0, nil
		}
		cs.pat = append(append(append([]byte{}, cs.pat...), e.cfg.Terminator), next...)
		cs.lineNum = reader.LineNum()
		cs.isLast = reader.IsLastRecord()

	case '=':
		if _, err := w.Write(append([]byte(strconv.Itoa(cs.lineNum)), e.cfg.Terminator)); err != nil {
			return outFallthrough, 0, err
		}
	case 'F':
		if _, err := w.Write(append([]byte(reader.CurrentFileName()), e.cfg.Terminator)); err != nil {
			return outFallthrough, 0, err
		}

	case 'a':
		*appendQueue = append(*appendQueue, append([]byte(cmd.Text), e.cfg.Terminator))
	case 'i':
		// `i` text goes out immediately: unlike `a`/`r`/`R` it belongs
		// before the current cycle's own output, not after it.
		if _, err := w.Write(append([]byte(cmd.Text), e.cfg.Terminator)); err != nil {
			return outFallthrough, 0, err
		}
	case 'c':
		if cmd.Addr2 == nil || !e.ranges[ip].active {
			if _, err := w.Write(append([]byte(cmd.Text), e.cfg.Terminator)); err != nil {
				return outFallthrough, 0, err
			}
		}
		return outRestartCycle, 0, nil

	case 's':
		if err := e.execSubstitute(cmd, cs, w); err != nil {
			return outFallthrough, 0, err
		}

	case 'y':
		if cmd.HasTrans {
			out := make([]byte, len(cs.pat))
			for i, b := range cs.pat {
				out[i] = cmd.TransMap[b]
			}
			cs.pat = out
		}

	case 'b':
		if cmd.Text == "" {
			return e.branchToEnd()
		}
		return outBranch, e.prog.Labels[cmd.Text], nil
	case 't':
		if e.substituted {
			e.substituted = false
			if cmd.Text == "" {
				return e.branchToEnd()
			}
			return outBranch, e.prog.Labels[cmd.Text], nil
		}
	case 'T':
		if !e.substituted {
			if cmd.Text == "" {
				return e.branchToEnd()
			}
			return outBranch, e.prog.Labels[cmd.Text], nil
		}

	case 'z':
		cs.pat = nil

	case 'l':
		width := e.cfg.LWidth
		if cmd.HasWidth {
			width = cmd.Width
		}
		rendered := RenderL(cs.pat, width)
		if _, err := w.Write(append([]byte(rendered), e.cfg.Terminator)); err != nil {
			return outFallthrough, 0, err
		}

	case 'r':
		if err := e.execRead(cmd, appendQueue); err != nil {
			return outFallthrough, 0, err
		}
	case 'R':
		if err := e.execReadLine(cmd, appendQueue); err != nil {
			return outFallthrough, 0, err
		}
	case 'w':
		if err := e.writeToFile(cmd.Text, cs.pat); err != nil {
			return outFallthrough, 0, err
		}
	case 'W':
		line := cs.pat
		if idx := bytes.IndexByte(cs.pat, e.cfg.Terminator); idx >= 0 {
			line = cs.pat[:idx]
		}
		if err := e.writeToFile(cmd.Text, line); err != nil {
			return outFallthrough, 0, err
		}
	case 'e':
		if err := e.execShell(cmd, cs); err != nil {
			return outFallthrough, 0, err
		}
	}
	return outFallthrough, 0, nil
}

// branchToEnd implements an empty-label b/t/T: fall through to the end of
// the program (i.e. as if no more commands matched).
func (e *Engine) branchToEnd() (outcome, int, error) {
	return outBranch, len(e.prog.Commands), nil
}

func (e *Engine) execSubstitute(cmd *Command, cs *cycleState, w *bufio.Writer) error {
	re := cmd.Regex
	if re == nil {
		re = e.lastRegex
	}
	if re == nil {
		return nil
	}
	e.lastRegex = re

	result := Substitute(re, cmd.Replacement, cs.pat, cmd.Flags)
	if result.count == 0 {
		return nil
	}
	cs.pat = result.output
	e.substituted = true

	if cmd.Flags.Exec {
		out, err := e.runShell(string(cs.pat))
		if err != nil {
			return err
		}
		cs.pat = out
	}
	if cmd.Flags.WriteFile != "" {
		if err := e.writeToFile(cmd.Flags.WriteFile, cs.pat); err != nil {
			return err
		}
	}
	if cmd.Flags.Print {
		if _, err := w.Write(append(append([]byte{}, cs.pat...), e.cfg.Terminator)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) execRead(cmd *Command, appendQueue *[][]byte) error {
	if err := sandbox.CheckAuxFile(cmd.Text); err != nil {
		return &SandboxViolation{Command: "r " + cmd.Text}
	}
	data, err := fs.ReadFile(cmd.Text)
	if err != nil {
		// r silently does nothing when the file is missing, matching
		// GNU sed; only a genuine read error (not ENOENT) is surfaced.
		if os.IsNotExist(err) {
			return nil
		}
		return &InputReadError{Path: cmd.Text, Err: err}
	}
	*appendQueue = append(*appendQueue, data)
	return nil
}

func (e *Engine) execReadLine(cmd *Command, appendQueue *[][]byte) error {
	if err := sandbox.CheckAuxFile(cmd.Text); err != nil {
		return &SandboxViolation{Command: "R " + cmd.Text}
	}
	key := cmd.Text
	if abs, err := filepath.Abs(cmd.Text); err == nil {
		key = abs
	}
	br, ok := e.readCursors[key]
	if !ok {
		f, err := fs.Open(cmd.Text)
		if err != nil {
			e.readCursors[key] = bufio.NewReader(bytes.NewReader(nil))
			return nil
		}
		e.readFiles[key] = f
		br = bufio.NewReader(f)
		e.readCursors[key] = br
	}
	line, err := br.ReadString('\n')
	if line == "" && err != nil {
		return nil
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		*appendQueue = append(*appendQueue, []byte(line))
	} else {
		*appendQueue = append(*appendQueue, append([]byte(line), '\n'))
	}
	return nil
}

func (e *Engine) writeToFile(name string, data []byte) error {
	if err := sandbox.CheckAuxFile(name); err != nil {
		return &SandboxViolation{Command: "w " + name}
	}
	f, ok := e.writeFiles[name]
	if !ok {
		var err error
		switch name {
		case "/dev/stdout", "/dev/stderr":
			// Handled below without an *os.File.
		default:
			f, err = fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return &OutputWriteError{Path: name, Err: err}
			}
			e.writeFiles[name] = f
		}
	}
	switch name {
	case "/dev/stdout":
		_, err := os.Stdout.Write(append(append([]byte{}, data...), e.cfg.Terminator))
		return err
	case "/dev/stderr":
		_, err := os.Stderr.Write(append(append([]byte{}, data...), e.cfg.Terminator))
		return err
	}
	if _, err := f.Write(data); err != nil {
		return &OutputWriteError{Path: name, Err: err}
	}
	if _, err := f.Write([]byte{e.cfg.Terminator}); err != nil {
		return &OutputWriteError{Path: name, Err: err}
	}
	return nil
}

func (e *Engine) execShell(cmd *Command, cs *cycleState) error {
	if cmd.Text != "" {
		out, err := e.runShell(cmd.Text)
		if err != nil {
			return err
		}
		cs.pat = append(out, cs.pat...)
		return nil
	}
	out, err := e.runShell(string(cs.pat))
	if err != nil {
		return err
	}
	cs.pat = out
	return nil
}

func (e *Engine) runShell(command string) ([]byte, error) {
	if sandbox.ExtraIODenied() {
		return nil, &SandboxViolation{Command: "e"}
	}
	if err := sandbox.CheckExec(); err != nil {
		return nil, &SandboxViolation{Command: "e"}
	}
	c := exec.Command("/bin/sh", "-c", command) // #nosec G204 -- sed's `e` command runs shell commands by design
	out, err := c.Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, &ShellExecError{Cmd: command, Err: err}
		}
	}
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *Engine) closeAuxFiles() {
	for _, f := range e.writeFiles {
		f.Close()
	}
	for _, f := range e.readFiles {
		f.Close()
	}
}
