package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/exoquest/internal/fsutil"
	"github.com/banshee-data/exoquest/internal/security"
)

// Source fetches artifact objects by name. A missing object yields an error
// wrapping fs.ErrNotExist.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	String() string
}

// Sink stores artifact objects by name.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Store is a Source that can also be written to.
type Store interface {
	Source
	Sink
}

// DirSource reads and writes artifacts in a local directory.
type DirSource struct {
	Dir string
	FS  fsutil.FileSystem
}

// NewDirSource returns a DirSource over dir on the OS filesystem.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir, FS: fsutil.OSFileSystem{}}
}

func (d *DirSource) String() string { return "dir:" + d.Dir }

func (d *DirSource) path(name string) (string, error) {
	if name != security.SanitizeFilename(name) {
		return "", fmt.Errorf("artifact name %q is not a plain file name", name)
	}
	return filepath.Join(d.Dir, name), nil
}

// Fetch reads name from the directory.
func (d *DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	return d.FS.ReadFile(p)
}

// Put writes name into the directory, creating it if needed. The object is
// written beside its final name and renamed into place, so a concurrent
// Fetch sees either the old or the new content.
func (d *DirSource) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := d.FS.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := d.FS.WriteFile(tmp, data, os.FileMode(0o644)); err != nil {
		return err
	}
	if err := d.FS.Rename(tmp, p); err != nil {
		_ = d.FS.Remove(tmp)
		return err
	}
	return nil
}
