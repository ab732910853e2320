// Package paths normalizes and compares output paths.
//
// Comparisons are case-insensitive: generated outputs are reconciled against
// project systems that treat "Foo.cs" and "foo.cs" as the same item, so the
// whole toolkit does too. On a case-sensitive filesystem two outputs that
// differ only in case are therefore treated as one output.
package paths

import (
	"path/filepath"
	"strings"

	"github.com/simonhull/quill/diag"
)

// Normalize resolves p against base when it is relative and cleans the result.
// Backslashes are accepted as separators so manifests written on Windows load
// everywhere.
func Normalize(base, p string) string {
	p = fromAnySlash(p)
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p)
}

// Key returns the map key used for case-insensitive path lookups.
func Key(p string) string {
	if p == "" {
		return ""
	}
	return strings.ToLower(filepath.Clean(fromAnySlash(p)))
}

// Equal reports whether two paths name the same file, ignoring case.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}

// SameDir reports whether both paths live in the same directory.
func SameDir(a, b string) bool {
	return Equal(filepath.Dir(a), filepath.Dir(b))
}

// Relative returns the path of toFile relative to the directory containing
// fromFile. Both paths must be absolute and on the same volume.
func Relative(fromFile, toFile string) (string, error) {
	return RelativeToDir(filepath.Dir(fromFile), toFile)
}

// RelativeToDir returns the path of target relative to dir.
func RelativeToDir(dir, target string) (string, error) {
	dir = filepath.Clean(fromAnySlash(dir))
	target = filepath.Clean(fromAnySlash(target))

	if !filepath.IsAbs(dir) || !filepath.IsAbs(target) {
		return "", diag.New(diag.PathResolution, target, "cannot relate %q to %q: both paths must be absolute", target, dir)
	}
	if !strings.EqualFold(filepath.VolumeName(dir), filepath.VolumeName(target)) {
		return "", diag.New(diag.PathResolution, target, "%q and %q are on different volumes", target, dir)
	}

	from := Segments(strings.TrimPrefix(dir, filepath.VolumeName(dir)))
	to := Segments(strings.TrimPrefix(target, filepath.VolumeName(target)))

	common := 0
	for common < len(from) && common < len(to) && strings.EqualFold(from[common], to[common]) {
		common++
	}

	parts := make([]string, 0, len(from)-common+len(to)-common)
	for i := common; i < len(from); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)

	if len(parts) == 0 {
		return ".", nil
	}
	return filepath.Join(parts...), nil
}

// IsWithin reports whether p lies inside dir (or is dir itself).
func IsWithin(dir, p string) bool {
	rel, err := RelativeToDir(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// StripDotSlash removes any leading "./" (or ".\") from a relative path.
func StripDotSlash(rel string) string {
	for {
		switch {
		case strings.HasPrefix(rel, "./"), strings.HasPrefix(rel, `.\`):
			rel = rel[2:]
		default:
			return rel
		}
	}
}

// Segments splits a path into its non-empty components, skipping ".".
func Segments(p string) []string {
	fields := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "." {
			out = append(out, f)
		}
	}
	return out
}

// TrimExt returns the base name of p without its final extension.
func TrimExt(p string) string {
	base := filepath.Base(fromAnySlash(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func fromAnySlash(p string) string {
	if filepath.Separator == '/' {
		return strings.ReplaceAll(p, `\`, "/")
	}
	return filepath.FromSlash(p)
}
