// Package vfs implements Chibi's permission-enforced shared namespace: the
// VfsPath invariants, the Backend abstraction, a LocalBackend, and the zone
// permission rules (spec §4.3). Grounded on
// original_source/crates/chibi-core/src/vfs/{path,permissions,vfs,local}.rs.
package vfs

import (
	"strings"

	"github.com/chibi-cli/chibi/internal/chibierr"
)

// Path is an opaque, validated VFS path string. Construction enforces every
// invariant from spec §3: starts with "/", no "..", no ".", no "//", no
// null bytes, no trailing "/" except root.
type Path struct {
	s string
}

// String returns the validated path text.
func (p Path) String() string { return p.s }

// NewPath validates raw and returns a Path, or a classified InvalidInput
// error.
func NewPath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, chibierr.New(chibierr.InvalidInput, "vfs", "path must not be empty")
	}
	if !strings.HasPrefix(raw, "/") {
		return Path{}, chibierr.New(chibierr.InvalidInput, "vfs", "path %q must start with /", raw)
	}
	if strings.Contains(raw, "\x00") {
		return Path{}, chibierr.New(chibierr.InvalidInput, "vfs", "path %q contains a null byte", raw)
	}
	if strings.Contains(raw, "//") {
		return Path{}, chibierr.New(chibierr.InvalidInput, "vfs", "path %q contains a repeated slash", raw)
	}
	if raw != "/" && strings.HasSuffix(raw, "/") {
		return Path{}, chibierr.New(chibierr.InvalidInput, "vfs", "path %q has a trailing slash", raw)
	}
	for _, seg := range strings.Split(strings.Trim(raw, "/"), "/") {
		if seg == "." || seg == ".." {
			return Path{}, chibierr.New(chibierr.InvalidInput, "vfs", "path %q contains a %q segment", raw, seg)
		}
	}
	return Path{s: raw}, nil
}

// MustPath panics if raw is invalid; for use with compile-time-known
// constants only.
func MustPath(raw string) Path {
	p, err := NewPath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// IsRoot reports whether p is "/".
func (p Path) IsRoot() bool { return p.s == "/" }

// Segments returns the non-empty path components.
func (p Path) Segments() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(strings.Trim(p.s, "/"), "/")
}

// Join appends a validated child segment to p.
func (p Path) Join(child string) (Path, error) {
	if p.IsRoot() {
		return NewPath("/" + child)
	}
	return NewPath(p.s + "/" + child)
}

// Zone classifies a Path into one of the permission regions from spec §3.
type Zone int

const (
	ZoneShared Zone = iota
	ZoneHome
	ZoneSystem
)

// ZoneOf returns the Zone a path falls in and, for ZoneHome, the owning
// context name.
func ZoneOf(p Path) (zone Zone, owner string) {
	segs := p.Segments()
	if len(segs) == 0 {
		return ZoneSystem, ""
	}
	switch segs[0] {
	case "shared":
		return ZoneShared, ""
	case "home":
		if len(segs) >= 2 {
			return ZoneHome, segs[1]
		}
		return ZoneHome, ""
	case "sys":
		return ZoneSystem, ""
	default:
		// "anything else at root — same as /sys/" per spec §3.
		return ZoneSystem, ""
	}
}
