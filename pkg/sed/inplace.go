package sed

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rcarmo/go-sed/pkg/core/fs"
)

// RunInPlace edits each named file in place: every file gets its own fresh
// Engine state (hold space, range activation, regex cache references) since
// -i treats each file as an independent program run, matching GNU sed's own
// -s-like behavior under -i even when -s wasn't explicitly given. "-"
// (stdin) cannot be edited in place and is rejected.
func (e *Engine) RunInPlace(ctx context.Context, files []string) (int, error) {
	for _, name := range files {
		if name == "-" {
			return ExitFailureCode, &InPlaceError{Path: name, Err: errStdinInPlace}
		}

		code, err := e.runInPlaceOne(ctx, name)
		if err != nil {
			return code, err
		}
	}
	return 0, nil
}

var errStdinInPlace = &InputOpenError{Path: "-", Err: os.ErrInvalid}

func (e *Engine) runInPlaceOne(ctx context.Context, name string) (int, error) {
	target := name
	if e.cfg.FollowSymlinks {
		if resolved, err := filepath.EvalSymlinks(name); err == nil {
			target = resolved
		}
	}

	dir := filepath.Dir(target)
	tmpName := filepath.Join(dir, ".sed-"+uuid.NewString())

	info, err := fs.Stat(target)
	if err != nil {
		return ExitFailureCode, &InPlaceError{Path: name, Err: err}
	}

	tmp, err := fs.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode())
	if err != nil {
		return ExitFailureCode, &InPlaceError{Path: name, Err: err}
	}

	fresh := NewEngine(e.prog, e.cfg)
	var buf bytes.Buffer
	code, runErr := fresh.Run(ctx, []string{target}, &buf)
	if runErr != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return ExitFailureCode, runErr
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return ExitFailureCode, &InPlaceError{Path: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return ExitFailureCode, &InPlaceError{Path: name, Err: err}
	}

	if e.cfg.InPlaceSuffix != "" {
		backup := backupName(target, e.cfg.InPlaceSuffix)
		if err := fs.Rename(target, backup); err != nil {
			fs.Remove(tmpName)
			return ExitFailureCode, &InPlaceError{Path: backup, Err: err}
		}
	}

	if err := fs.Rename(tmpName, target); err != nil {
		fs.Remove(tmpName)
		return ExitFailureCode, &InPlaceError{Path: name, Err: err}
	}

	return code, nil
}

// backupName mirrors GNU sed's -i SUFFIX handling: a suffix containing '*'
// is a full pattern with the basename substituted in place of '*' (allowing
// backups in a different directory); otherwise it's appended verbatim.
func backupName(path, suffix string) string {
	if bytes.ContainsRune([]byte(suffix), '*') {
		dir := filepath.Dir(path)
		base := filepath.Base(path)
		replaced := bytes.ReplaceAll([]byte(suffix), []byte("*"), []byte(base))
		if filepath.IsAbs(suffix) || bytes.ContainsRune([]byte(suffix), filepath.Separator) {
			return string(replaced)
		}
		return filepath.Join(dir, string(replaced))
	}
	return path + suffix
}
