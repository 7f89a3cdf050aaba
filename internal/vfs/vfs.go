package vfs

import (
	"context"

	"github.com/chibi-cli/chibi/internal/chibierr"
)

// Vfs wraps one Backend and enforces the zone permission rules from
// permissions.go on every write-shaped call. Reads are always allowed.
type Vfs struct {
	backend Backend
}

// New wraps backend with permission enforcement.
func New(backend Backend) *Vfs {
	return &Vfs{backend: backend}
}

func denied(caller string, p Path) error {
	return chibierr.New(chibierr.PermissionDenied, "vfs", "caller %q may not write %q", caller, p.String())
}

// Read is allowed for any caller.
func (v *Vfs) Read(ctx context.Context, caller string, p Path) ([]byte, error) {
	return v.backend.Read(ctx, p)
}

// Write requires CanWrite(caller, p).
func (v *Vfs) Write(ctx context.Context, caller string, p Path, data []byte) error {
	if !CanWrite(caller, p) {
		return denied(caller, p)
	}
	return v.backend.Write(ctx, p, data)
}

// Append requires CanWrite(caller, p).
func (v *Vfs) Append(ctx context.Context, caller string, p Path, data []byte) error {
	if !CanWrite(caller, p) {
		return denied(caller, p)
	}
	return v.backend.Append(ctx, p, data)
}

// Delete requires CanWrite(caller, p).
func (v *Vfs) Delete(ctx context.Context, caller string, p Path) error {
	if !CanWrite(caller, p) {
		return denied(caller, p)
	}
	return v.backend.Delete(ctx, p)
}

// List is allowed for any caller.
func (v *Vfs) List(ctx context.Context, caller string, p Path) ([]Entry, error) {
	return v.backend.List(ctx, p)
}

// Exists is allowed for any caller.
func (v *Vfs) Exists(ctx context.Context, caller string, p Path) (bool, error) {
	return v.backend.Exists(ctx, p)
}

// Mkdir requires CanWrite(caller, p).
func (v *Vfs) Mkdir(ctx context.Context, caller string, p Path) error {
	if !CanWrite(caller, p) {
		return denied(caller, p)
	}
	return v.backend.Mkdir(ctx, p)
}

// Metadata is allowed for any caller.
func (v *Vfs) Metadata(ctx context.Context, caller string, p Path) (Metadata, error) {
	return v.backend.Metadata(ctx, p)
}

// Copy requires read(src) — always true — and write(dst).
func (v *Vfs) Copy(ctx context.Context, caller string, src, dst Path) error {
	if !CanWrite(caller, dst) {
		return denied(caller, dst)
	}
	return v.backend.Copy(ctx, src, dst)
}

// Rename requires write on both src and dst.
func (v *Vfs) Rename(ctx context.Context, caller string, src, dst Path) error {
	if !CanWrite(caller, src) {
		return denied(caller, src)
	}
	if !CanWrite(caller, dst) {
		return denied(caller, dst)
	}
	return v.backend.Rename(ctx, src, dst)
}
