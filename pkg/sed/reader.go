package sed

import (
	"bufio"
	"io"
	"os"

	"github.com/rcarmo/go-sed/pkg/core/fs"
)

// Reader streams records (terminator-delimited fragments, usually lines)
// from one or more named sources ("-" meaning stdin), presenting a single
// logical sequence unless Separate is set. It supports a configurable
// terminator byte (-z/--end) and a one-record lookahead so the engine can
// ask "is this the last record?" (the `$` address, and N/n at EOF) without
// consuming it.
type Reader struct {
	stdin     io.Reader
	names     []string
	term      byte
	separate  bool

	idx        int
	cur        *bufio.Reader
	curFile    *os.File
	curName    string
	endedWithTerm bool // whether the current source's last record had a trailing terminator

	lineNum int

	havePeek     bool
	peekRec      []byte
	peekHadTerm  bool
	peekFileName string
	peekChanged  bool
	peekErr      error
	peekEOF      bool

	fileChanged bool // true once, immediately after crossing a source boundary
}

// NewReader builds a Reader over the given file names (or just "-" for
// stdin-only input). term is the byte that ends a record; stdin supplies
// data when a name is "-". separate makes line numbering and the `$`
// (last-line) address restart at each source's boundary instead of
// treating all sources as one continuous stream (the -s flag).
func NewReader(stdin io.Reader, names []string, term byte, separate bool) *Reader {
	if len(names) == 0 {
		names = []string{"-"}
	}
	r := &Reader{stdin: stdin, names: names, term: term, separate: separate, idx: -1}
	r.fill()
	return r
}

func (r *Reader) openNext() bool {
	for {
		r.idx++
		if r.idx >= len(r.names) {
			return false
		}
		name := r.names[r.idx]
		if name == "-" {
			r.cur = bufio.NewReader(r.stdin)
			r.curFile = nil
			r.curName = "-"
			return true
		}
		f, err := fs.Open(name)
		if err != nil {
			r.peekErr = &InputOpenError{Path: name, Err: err}
			return false
		}
		r.cur = bufio.NewReader(f)
		r.curFile = f
		r.curName = name
		return true
	}
}

// readOneFromCurrent reads the next terminator-delimited record from the
// currently open source. ok is false at genuine EOF of that source.
func (r *Reader) readOneFromCurrent() (rec []byte, hadTerm bool, ok bool, err error) {
	data, rerr := r.cur.ReadBytes(r.term)
	if len(data) == 0 && rerr != nil {
		return nil, false, false, nil
	}
	if rerr != nil && rerr != io.EOF {
		return nil, false, false, &InputReadError{Path: r.curName, Err: rerr}
	}
	if len(data) > 0 && data[len(data)-1] == r.term {
		return data[:len(data)-1], true, true, nil
	}
	return data, false, true, nil
}

// fill populates the one-record lookahead buffer from whichever source
// has data, advancing across source boundaries and tracking whether a
// boundary was just crossed.
func (r *Reader) fill() {
	r.peekChanged = false
	for {
		if r.cur == nil {
			if !r.openNext() {
				r.peekEOF = true
				return
			}
			r.peekChanged = true
		}
		rec, hadTerm, ok, err := r.readOneFromCurrent()
		if err != nil {
			r.peekErr = err
			return
		}
		if !ok {
			if r.curFile != nil {
				r.curFile.Close()
			}
			r.cur = nil
			continue
		}
		r.havePeek = true
		r.peekRec = rec
		r.peekHadTerm = hadTerm
		r.peekFileName = r.curName
		return
	}
}

// Next returns the next record and whether one was available. err is set
// only on a genuine I/O failure (not plain EOF).
func (r *Reader) Next() ([]byte, bool, error) {
	if r.peekErr != nil {
		err := r.peekErr
		r.peekErr = nil
		return nil, false, err
	}
	if !r.havePeek {
		return nil, false, nil
	}
	rec := r.peekRec
	r.endedWithTerm = r.peekHadTerm
	r.curName = r.peekFileName
	r.fileChanged = r.peekChanged
	if r.separate && r.fileChanged {
		r.lineNum = 0
	}
	r.lineNum++
	r.havePeek = false
	r.fill()
	return rec, true, nil
}

// HasMore reports whether another record is available anywhere in the
// remaining sources, without consuming it. It looks across source
// boundaries, even under -s.
func (r *Reader) HasMore() bool {
	return r.havePeek
}

// IsLastRecord reports whether the record just returned by Next should be
// treated as the final record for `$` address purposes: true input EOF
// always counts, and so does the record right before a source boundary
// when running in separate (-s) mode.
func (r *Reader) IsLastRecord() bool {
	if !r.havePeek {
		return true
	}
	return r.separate && r.peekChanged
}

// LastHadTerminator reports whether the record just returned by Next was
// followed by the terminator byte in its source (false for a final
// fragment with no trailing terminator).
func (r *Reader) LastHadTerminator() bool {
	return r.endedWithTerm
}

// CurrentFileName returns the name of the source the last record returned
// by Next came from, for the F command.
func (r *Reader) CurrentFileName() string {
	return r.curName
}

// CurrentFileChanged reports whether the record just returned by Next was
// the first one read from a new source (used by the engine to log the
// start of each source under --verbose).
func (r *Reader) CurrentFileChanged() bool {
	return r.fileChanged
}

// LineNum returns the number of records returned so far, counted from the
// start of the current source when separate is set.
func (r *Reader) LineNum() int {
	return r.lineNum
}

// Err returns any pending read error without consuming the peek.
func (r *Reader) Err() error {
	return r.peekErr
}
