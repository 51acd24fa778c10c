package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/common"
)

type dirMeta struct {
	path    string
	mode    fs.FileMode
	modTime time.Time
}

// Extract recreates the archive read from r under dest, which must exist.
// It returns the top-level names it created, in stream order.
//
// Entries must stay inside dest: absolute paths, ".." components and paths
// that pass through an extracted symbolic link are rejected. Existing files
// are never overwritten.
func Extract(ctx context.Context, r io.Reader, dest string) ([]string, error) {
	tr, closeFn, err := newReader(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	dest = filepath.Clean(dest)
	var (
		tops []string
		seen = map[string]struct{}{}
		dirs []dirMeta
	)

	for {
		if err := ctx.Err(); err != nil {
			return tops, err
		}

		hdr, err := next(tr)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return tops, err
		}

		e, err := entryFromHeader(hdr)
		if err != nil {
			return tops, err
		}

		rel := filepath.FromSlash(e.Path)
		target := filepath.Join(dest, rel)

		top := strings.SplitN(e.Path, "/", 2)[0]
		if _, ok := seen[top]; !ok {
			seen[top] = struct{}{}
			tops = append(tops, top)
		}

		if err := ensureParents(dest, rel); err != nil {
			return tops, err
		}

		switch e.Kind {
		case KindDir:
			if err := os.Mkdir(target, 0o700); err != nil {
				if !errors.Is(err, fs.ErrExist) {
					return tops, err
				}
				fi, lerr := os.Lstat(target)
				if lerr != nil {
					return tops, lerr
				}
				if !fi.IsDir() {
					return tops, archiveErr("%s already exists and is not a directory", e.Path)
				}
			}
			dirs = append(dirs, dirMeta{path: target, mode: e.Mode, modTime: e.ModTime})

		case KindFile:
			if err := writeFile(target, tr, e); err != nil {
				return tops, err
			}

		case KindSymlink:
			if err := os.Symlink(filepath.FromSlash(e.Target), target); err != nil {
				if errors.Is(err, fs.ErrExist) {
					return tops, archiveErr("%s already exists", e.Path)
				}
				return tops, err
			}
			if err := lchtimes(target, e.ModTime); err != nil {
				return tops, err
			}
		}
	}

	// children first, so that restrictive modes do not block creation and
	// child writes do not bump parent mtimes
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if err := os.Chmod(d.path, d.mode); err != nil {
			return tops, err
		}
		if err := os.Chtimes(d.path, d.modTime, d.modTime); err != nil {
			return tops, err
		}
	}
	return tops, nil
}

// ensureParents creates the missing parent directories of rel below dest and
// rejects any existing parent that is not a real directory.
func ensureParents(dest, rel string) error {
	parts := strings.Split(filepath.Dir(rel), string(filepath.Separator))
	cur := dest
	for _, part := range parts {
		if part == "." || part == "" {
			continue
		}
		cur = filepath.Join(cur, part)

		fi, err := os.Lstat(cur)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if err := os.Mkdir(cur, 0o700); err != nil {
				return err
			}
		case err != nil:
			return err
		case fi.Mode()&fs.ModeSymlink != 0:
			return archiveErr("%s: path traverses a symbolic link", rel)
		case !fi.IsDir():
			return archiveErr("%s: parent is not a directory", rel)
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, e Entry) error {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return archiveErr("%s already exists", e.Path)
		}
		return err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrArchive, e.Path, err)
	}
	if n != e.Size {
		return archiveErr("%s: expected %d bytes, got %d", e.Path, e.Size, n)
	}

	if err := os.Chmod(target, e.Mode); err != nil {
		return err
	}
	return os.Chtimes(target, e.ModTime, e.ModTime)
}
