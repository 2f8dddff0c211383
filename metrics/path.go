package metrics

import (
	"strings"
)

// Path names a metric in the registry. Segments are dot-joined:
// "http.server.requests". The zero Path is invalid.
type Path string

// NewPath joins segments into a Path. Empty segments are dropped.
func NewPath(segments ...string) Path {
	kept := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return Path(strings.Join(kept, "."))
}

// Join appends a child segment.
func (p Path) Join(child string) Path {
	if p == "" {
		return Path(child)
	}
	if child == "" {
		return p
	}
	return p + "." + Path(child)
}

// Segments splits the path on dots.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), ".")
}

func (p Path) String() string { return string(p) }

// Valid reports whether the path is non-empty with no empty segment.
func (p Path) Valid() bool {
	if p == "" {
		return false
	}
	for _, s := range p.Segments() {
		if s == "" {
			return false
		}
	}
	return true
}
