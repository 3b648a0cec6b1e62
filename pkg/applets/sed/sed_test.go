package sed_test

import (
	"testing"

	"github.com/rcarmo/go-sed/pkg/applets/sed"
	"github.com/rcarmo/go-sed/pkg/core"
	"github.com/rcarmo/go-sed/pkg/testutil"
)

func TestSed(t *testing.T) {
	tests := []testutil.AppletTestCase{
		{
			Name:     "substitute",
			Args:     []string{"s/foo/bar/", "input.txt"},
			WantCode: core.ExitSuccess,
			WantOut:  "bar\nbar\n",
			Files: map[string]string{
				"input.txt": "foo\nfoo\n",
			},
		},
		{
			Name:     "print_only",
			Args:     []string{"-n", "p", "input.txt"},
			WantCode: core.ExitSuccess,
			WantOut:  "foo\n",
			Files: map[string]string{
				"input.txt": "foo\n",
			},
		},
		{
			Name:     "delete",
			Args:     []string{"d", "input.txt"},
			WantCode: core.ExitSuccess,
			WantOut:  "",
			Files: map[string]string{
				"input.txt": "foo\n",
			},
		},
		{
			Name:     "append",
			Args:     []string{"a bar", "input.txt"},
			WantCode: core.ExitSuccess,
			WantOut:  "foo\nbar\n",
			Files: map[string]string{
				"input.txt": "foo\n",
			},
		},
		{
			Name:     "insert",
			Args:     []string{"i bar", "input.txt"},
			WantCode: core.ExitSuccess,
			WantOut:  "bar\nfoo\n",
			Files: map[string]string{
				"input.txt": "foo\n",
			},
		},
		{
			Name:     "change",
			Args:     []string{"c bar", "input.txt"},
			WantCode: core.ExitSuccess,
			WantOut:  "bar\n",
			Files: map[string]string{
				"input.txt": "foo\n",
			},
		},
		{
			Name:     "multiple_expressions",
			Args:     []string{"-e", "s/foo/bar/", "-e", "s/bar/baz/", "input.txt"},
			WantCode: core.ExitSuccess,
			WantOut:  "baz\n",
			Files: map[string]string{
				"input.txt": "foo\n",
			},
		},
		{
			Name:     "extended_regex",
			Args:     []string{"-E", "s/(foo|bar)/X/", "input.txt"},
			WantCode: core.ExitSuccess,
			WantOut:  "X\nX\n",
			Files: map[string]string{
				"input.txt": "foo\nbar\n",
			},
		},
		{
			Name:     "missing_script",
			Args:     []string{},
			WantCode: core.ExitUsage,
		},
		{
			Name:     "sandbox_rejects_exec",
			Args:     []string{"--sandbox", "e echo hi", "input.txt"},
			WantCode: core.ExitFailure,
			Files: map[string]string{
				"input.txt": "foo\n",
			},
		},
	}

	testutil.RunAppletTests(t, sed.Run, tests)
}
