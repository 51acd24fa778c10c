// Package archive packs a file or directory tree into a single compressed
// stream and unpacks it again.
//
// The stream is a PAX tar archive compressed with zstd. Entries are emitted
// depth-first in lexical order, symbolic links are stored as links and never
// followed, and ownership is not recorded.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/klauspost/compress/zstd"
)

// Kind is the type of an archive entry.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindDir
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Entry describes one member of an archive. Path is slash separated and
// relative to the extraction root.
type Entry struct {
	Path    string
	Kind    Kind
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	Target  string
}

// Summary counts what Write put into the stream.
type Summary struct {
	Files    int
	Dirs     int
	Symlinks int
	Bytes    int64
}

func (s Summary) Entries() int { return s.Files + s.Dirs + s.Symlinks }

func archiveErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrArchive, fmt.Sprintf(format, args...))
}

// Write archives src into w. The tree is rooted at the base name of src.
func Write(ctx context.Context, src string, w io.Writer) (Summary, error) {
	var sum Summary

	src = filepath.Clean(src)
	root := filepath.Base(src)
	if root == "." || root == string(filepath.Separator) {
		return sum, archiveErr("cannot archive %q", src)
	}

	if _, err := os.Lstat(src); err != nil {
		return sum, err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return sum, err
	}
	tw := tar.NewWriter(zw)

	walkErr := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		name := root
		if rel != "." {
			name = path.Join(root, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return writeEntry(tw, p, name, info, &sum)
	})
	if walkErr != nil {
		zw.Close()
		return sum, walkErr
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return sum, err
	}
	if err := zw.Close(); err != nil {
		return sum, err
	}
	return sum, nil
}

func writeEntry(tw *tar.Writer, p, name string, info fs.FileInfo, sum *Summary) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
		Format:  tar.FormatPAX,
	}

	switch mode := info.Mode(); {
	case mode.IsDir():
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		sum.Dirs++
		return nil

	case mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(p)
		if err != nil {
			return err
		}
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = filepath.ToSlash(target)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		sum.Symlinks++
		return nil

	case mode.IsRegular():
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		hdr.Typeflag = tar.TypeReg
		hdr.Size = info.Size()
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		n, err := io.Copy(tw, io.LimitReader(f, hdr.Size))
		if err != nil {
			return err
		}
		if n != hdr.Size {
			return archiveErr("%s changed size while archiving", name)
		}
		sum.Files++
		sum.Bytes += n
		return nil

	default:
		return archiveErr("%s: unsupported file type %s", name, info.Mode().Type())
	}
}

func newReader(r io.Reader) (*tar.Reader, func(), error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrArchive, err)
	}
	return tar.NewReader(zr), zr.Close, nil
}

// next wraps tar errors so that callers can match both ErrArchive and any
// underlying transport or integrity error.
func next(tr *tar.Reader) (*tar.Header, error) {
	hdr, err := tr.Next()
	if err == io.EOF {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrArchive, err)
	}
	return hdr, nil
}

func entryFromHeader(hdr *tar.Header) (Entry, error) {
	e := Entry{
		Path:    path.Clean(hdr.Name),
		Size:    hdr.Size,
		Mode:    fs.FileMode(hdr.Mode).Perm(),
		ModTime: hdr.ModTime,
	}
	switch hdr.Typeflag {
	case tar.TypeDir:
		e.Kind = KindDir
		e.Size = 0
	case tar.TypeReg:
		e.Kind = KindFile
	case tar.TypeSymlink:
		e.Kind = KindSymlink
		e.Target = hdr.Linkname
		e.Size = 0
	default:
		return e, archiveErr("%s: unsupported entry type %q", hdr.Name, hdr.Typeflag)
	}

	if !filepath.IsLocal(filepath.FromSlash(e.Path)) || path.IsAbs(hdr.Name) {
		return e, archiveErr("unsafe path %q", hdr.Name)
	}
	return e, nil
}

// List returns the entries of the archive in stream order without
// extracting them.
func List(r io.Reader) ([]Entry, error) {
	tr, closeFn, err := newReader(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var entries []Entry
	for {
		hdr, err := next(tr)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		e, err := entryFromHeader(hdr)
		if err != nil {
			return nil, err
		}
		if e.Kind == KindFile {
			if _, err := io.Copy(io.Discard, tr); err != nil {
				return nil, fmt.Errorf("%w: %w", common.ErrArchive, err)
			}
		}
		entries = append(entries, e)
	}
}
