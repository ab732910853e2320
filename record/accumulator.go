package record

import (
	"strings"

	"github.com/simonhull/quill/diag"
	"github.com/simonhull/quill/paths"
)

// Accumulator collects the records of a single pass.
// It is not safe for concurrent use.
type Accumulator struct {
	baseDir string
	order   []string
	entries map[string]*entry
}

type entry struct {
	raw     string // path as first appended, before normalization
	rec     Record
	content strings.Builder
}

// NewAccumulator creates an accumulator resolving relative paths against baseDir.
func NewAccumulator(baseDir string) *Accumulator {
	return &Accumulator{
		baseDir: baseDir,
		entries: make(map[string]*entry),
	}
}

// Append merges r into the entry with the same path, or inserts it.
// Content is never dropped: it is concatenated to what is already there.
func (a *Accumulator) Append(r Record) {
	raw := r.Path
	r.Path = paths.Normalize(a.baseDir, r.Path)
	key := paths.Key(r.Path)

	e, ok := a.entries[key]
	if !ok {
		e = &entry{raw: raw, rec: r}
		e.rec.Content = ""
		e.content.WriteString(r.Content)
		a.entries[key] = e
		a.order = append(a.order, key)
		return
	}

	content := r.Content
	r.Content = ""
	e.rec = e.rec.merge(r)
	e.content.WriteString(content)
}

// Len returns the number of distinct outputs appended so far.
func (a *Accumulator) Len() int {
	return len(a.order)
}

// Finalize returns the distinct records in first-seen order. Every record
// must carry a non-empty path that does not name a directory.
func (a *Accumulator) Finalize() ([]Record, error) {
	out := make([]Record, 0, len(a.order))
	for _, key := range a.order {
		e := a.entries[key]
		if err := validatePath(e.raw); err != nil {
			return nil, err
		}
		rec := e.rec
		rec.Content = e.content.String()
		out = append(out, rec)
	}
	return out, nil
}

func validatePath(p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return diag.New(diag.InvalidOutput, "", "output path is empty")
	case strings.ContainsRune(p, 0):
		return diag.New(diag.InvalidOutput, p, "output path contains a NUL byte")
	case strings.HasSuffix(p, "/") || strings.HasSuffix(p, `\`):
		return diag.New(diag.InvalidOutput, p, "output path names a directory")
	}
	return nil
}
