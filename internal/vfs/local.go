package vfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/chibi-cli/chibi/internal/chibierr"
	"github.com/chibi-cli/chibi/internal/safeio"
)

// LocalBackend maps VFS paths onto a real directory tree rooted at Root.
// Writes go through safeio for crash safety; List reports (name, kind)
// pairs; Delete cascades directories.
type LocalBackend struct {
	Root string
}

// NewLocalBackend returns a backend rooted at root, creating it if absent.
func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	return &LocalBackend{Root: root}, nil
}

func (b *LocalBackend) osPath(p Path) string {
	if p.IsRoot() {
		return b.Root
	}
	return filepath.Join(b.Root, filepath.Join(p.Segments()...))
}

func (b *LocalBackend) Read(_ context.Context, p Path) ([]byte, error) {
	data, err := os.ReadFile(b.osPath(p))
	if os.IsNotExist(err) {
		return nil, chibierr.New(chibierr.NotFound, "vfs", "no such path %q", p.String())
	}
	if err != nil {
		return nil, chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	return data, nil
}

func (b *LocalBackend) Write(_ context.Context, p Path, data []byte) error {
	if err := safeio.AtomicWrite(b.osPath(p), data); err != nil {
		return chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	return nil
}

func (b *LocalBackend) Append(_ context.Context, p Path, data []byte) error {
	full := b.osPath(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	return f.Sync()
}

func (b *LocalBackend) Delete(_ context.Context, p Path) error {
	if err := os.RemoveAll(b.osPath(p)); err != nil {
		return chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	return nil
}

func (b *LocalBackend) List(_ context.Context, p Path) ([]Entry, error) {
	dirents, err := os.ReadDir(b.osPath(p))
	if os.IsNotExist(err) {
		return nil, chibierr.New(chibierr.NotFound, "vfs", "no such path %q", p.String())
	}
	if err != nil {
		return nil, chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	out := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		kind := KindFile
		if d.IsDir() {
			kind = KindDir
		}
		out = append(out, Entry{Name: d.Name(), Kind: kind})
	}
	return out, nil
}

func (b *LocalBackend) Exists(_ context.Context, p Path) (bool, error) {
	_, err := os.Stat(b.osPath(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, chibierr.Wrap(chibierr.Fatal, "vfs", err)
}

func (b *LocalBackend) Mkdir(_ context.Context, p Path) error {
	if err := os.MkdirAll(b.osPath(p), 0o755); err != nil {
		return chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	return nil
}

func (b *LocalBackend) Copy(ctx context.Context, src, dst Path) error {
	data, err := b.Read(ctx, src)
	if err != nil {
		return err
	}
	return b.Write(ctx, dst, data)
}

func (b *LocalBackend) Rename(_ context.Context, src, dst Path) error {
	full := b.osPath(dst)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	if err := os.Rename(b.osPath(src), full); err != nil {
		return chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	return nil
}

func (b *LocalBackend) Metadata(_ context.Context, p Path) (Metadata, error) {
	info, err := os.Stat(b.osPath(p))
	if os.IsNotExist(err) {
		return Metadata{}, chibierr.New(chibierr.NotFound, "vfs", "no such path %q", p.String())
	}
	if err != nil {
		return Metadata{}, chibierr.Wrap(chibierr.Fatal, "vfs", err)
	}
	return Metadata{Size: info.Size(), IsDir: info.IsDir(), ModUnix: info.ModTime().Unix()}, nil
}

// uriPrefix is the scheme Chibi tools use to address VFS paths from outside
// the VFS layer, e.g. "vfs:///sys/tool_cache/...".
const uriPrefix = "vfs://"

// URI renders p as a vfs:/// URI.
func URI(p Path) string {
	return uriPrefix + p.String()
}

// ParsePathFromURI strips a "vfs://" prefix (if present) before validating.
func ParsePathFromURI(raw string) (Path, error) {
	raw = strings.TrimPrefix(raw, uriPrefix)
	return NewPath(raw)
}
