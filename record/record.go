// Package record describes generated outputs and collects them during a
// generation pass.
//
// # Records
//
// A Record is one logical generated artifact: where it goes, what it
// contains, how it is encoded and which project metadata the resulting
// project item should carry.
//
// # Accumulating
//
// Templates append to the same output several times while they run. The
// Accumulator merges those appends by path (case-insensitive): content is
// concatenated in append order, scalar metadata keeps the first value that
// was set, and collections are unioned.
//
//	acc := record.NewAccumulator(templateDir)
//	acc.Append(record.Record{Path: "Models/User.cs", Content: header})
//	acc.Append(record.Record{Path: "models/user.cs", Content: body})
//
//	records, err := acc.Finalize()
package record

import (
	"strings"
)

// Property is one named build property applied to a project item.
type Property struct {
	Name  string
	Value string
}

// Metadata is the project-item metadata an output asks for.
// Empty fields mean "leave unchanged".
type Metadata struct {
	BuildAction           string
	CopyToOutputDirectory string
	CustomTool            string
	CustomToolNamespace   string
	BuildProperties       []Property // first value wins per name, case-insensitive
	References            []string   // deduplicated, case-insensitive
}

// IsZero reports whether no metadata was requested.
func (m Metadata) IsZero() bool {
	return m.BuildAction == "" && m.CopyToOutputDirectory == "" &&
		m.CustomTool == "" && m.CustomToolNamespace == "" &&
		len(m.BuildProperties) == 0 && len(m.References) == 0
}

// Property returns the value of a build property and whether it is set.
// Names compare case-insensitively, as MSBuild metadata names do.
func (m Metadata) Property(name string) (string, bool) {
	for _, p := range m.BuildProperties {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Merge folds other into m: scalars keep their first non-empty value,
// build properties keep the first value per name, references are unioned.
func (m Metadata) Merge(other Metadata) Metadata {
	out := m
	out.BuildAction = firstNonEmpty(m.BuildAction, other.BuildAction)
	out.CopyToOutputDirectory = firstNonEmpty(m.CopyToOutputDirectory, other.CopyToOutputDirectory)
	out.CustomTool = firstNonEmpty(m.CustomTool, other.CustomTool)
	out.CustomToolNamespace = firstNonEmpty(m.CustomToolNamespace, other.CustomToolNamespace)

	out.BuildProperties = append([]Property(nil), m.BuildProperties...)
	for _, p := range other.BuildProperties {
		if _, ok := out.Property(p.Name); !ok {
			out.BuildProperties = append(out.BuildProperties, p)
		}
	}

	out.References = unionFold(m.References, other.References)
	return out
}

// Record is one generated output. Records returned by Accumulator.Finalize
// have an absolute, cleaned Path and must not be modified.
type Record struct {
	Path             string   // absolute, or relative to the pass directory
	Content          string   // full text to write
	Encoding         Encoding // zero value is UTF-8 without BOM
	Project          string   // explicit target project file; empty = template's project
	PreserveExisting bool     // never overwrite or delete an existing file
	Metadata         Metadata
}

// Bytes returns the content encoded with the record's encoding.
func (r Record) Bytes() ([]byte, error) {
	return r.Encoding.Encode(r.Content)
}

// merge appends other into r following the accumulation rules.
func (r Record) merge(other Record) Record {
	out := r
	out.Content = r.Content + other.Content
	if out.Encoding.IsZero() {
		out.Encoding = other.Encoding
	}
	out.Project = firstNonEmpty(r.Project, other.Project)
	out.PreserveExisting = r.PreserveExisting || other.PreserveExisting
	out.Metadata = r.Metadata.Merge(other.Metadata)
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func unionFold(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
