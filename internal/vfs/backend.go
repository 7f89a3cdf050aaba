package vfs

import "context"

// EntryKind distinguishes files from directories in a List result.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

// Entry is one item returned by Backend.List.
type Entry struct {
	Name string
	Kind EntryKind
}

// Metadata describes one object in a Backend.
type Metadata struct {
	Size    int64
	IsDir   bool
	ModUnix int64
}

// Backend is the storage abstraction behind a Vfs. Every method is
// context-aware so multiple backends (local, future remote) can be mounted
// by longest-prefix match without changing the call sites. Implementations
// must not themselves enforce zone permissions — that is Vfs's job.
type Backend interface {
	Read(ctx context.Context, path Path) ([]byte, error)
	Write(ctx context.Context, path Path, data []byte) error
	Append(ctx context.Context, path Path, data []byte) error
	Delete(ctx context.Context, path Path) error
	List(ctx context.Context, path Path) ([]Entry, error)
	Exists(ctx context.Context, path Path) (bool, error)
	Mkdir(ctx context.Context, path Path) error
	Copy(ctx context.Context, src, dst Path) error
	Rename(ctx context.Context, src, dst Path) error
	Metadata(ctx context.Context, path Path) (Metadata, error)
}
