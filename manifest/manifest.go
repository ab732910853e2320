// Package manifest reads and writes the sidecar log that records which
// outputs a template generated on its previous run.
//
// The manifest lives next to the template as "<template>.log". It is plain
// text: one output path per line, relative to the template's directory.
// Lines starting with "//" are comments and blank lines are ignored.
//
//	// <autogenerated>
//	//   Outputs generated by quill from Gen.tt.
//	// </autogenerated>
//	foo.cs
//	../Other/baz.cs
//
// A manifest is only written when a run places outputs outside the
// template's directory or into another project; in the common single
// directory case the project tree alone is enough to find stale outputs.
package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/record"
)

// Extension is appended to the template path to name its manifest.
const Extension = ".log"

const commentPrefix = "//"

// PathFor returns the manifest path for a template.
func PathFor(templatePath string) string {
	return templatePath + Extension
}

// Load reads the manifest at path and returns the listed outputs resolved
// to absolute paths against baseDir, in file order. A missing manifest is
// not an error: it yields no entries.
func Load(fs afero.Fs, path, baseDir string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	return Parse(data, baseDir)
}

// Parse extracts the entries of manifest content.
func Parse(data []byte, baseDir string) ([]string, error) {
	var entries []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		entries = append(entries, paths.Normalize(baseDir, line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return entries, nil
}

// ShouldCreate reports whether a run needs a manifest: true when at least one
// output lands outside templateDir or names a project other than
// templateProject.
func ShouldCreate(outputs []record.Record, templateDir, templateProject string) bool {
	for _, r := range outputs {
		if !paths.Equal(filepath.Dir(r.Path), templateDir) {
			return true
		}
		if r.Project != "" && !paths.Equal(r.Project, templateProject) {
			return true
		}
	}
	return false
}

// Build renders manifest content for the outputs of a run: a header comment
// followed by one line per non-preserved output, in run order. Paths are
// written relative to the template's directory.
func Build(templatePath string, outputs []record.Record) (string, error) {
	var b strings.Builder
	b.WriteString("// <autogenerated>\n")
	fmt.Fprintf(&b, "//   Outputs generated by quill from %s.\n", filepath.Base(templatePath))
	b.WriteString("//   The next run deletes listed files it no longer generates. Do not edit.\n")
	b.WriteString("// </autogenerated>\n")

	for _, r := range outputs {
		if r.PreserveExisting {
			continue
		}
		rel, err := paths.Relative(templatePath, r.Path)
		if err != nil {
			return "", fmt.Errorf("listing %s in manifest: %w", r.Path, err)
		}
		b.WriteString(rel)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Record builds the output record that writes the manifest itself.
func Record(templatePath string, outputs []record.Record) (record.Record, error) {
	content, err := Build(templatePath, outputs)
	if err != nil {
		return record.Record{}, err
	}
	return record.Record{
		Path:     PathFor(templatePath),
		Content:  content,
		Encoding: record.UTF8,
		Metadata: record.Metadata{BuildAction: "None"},
	}, nil
}
