package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const maxNameAttempts = 1000

// FileSink writes each entry as its own JSON file under dir.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Dir() string { return s.dir }

// Put creates dir when missing and never replaces an existing file: a second entry for the
// same id is stored as audit-<id>-1.json, audit-<id>-2.json and so on.
func (s *FileSink) Put(ctx context.Context, name string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	for i := 0; i < maxNameAttempts; i++ {
		path := filepath.Join(s.dir, suffixed(name, i))

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return err
		}

		if _, err := f.Write(body); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}

	return fmt.Errorf("too many audit entries named %s", name)
}

func suffixed(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
