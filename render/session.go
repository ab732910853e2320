package render

import (
	"strings"
	"text/template"

	"github.com/simonhull/quill/diag"
	"github.com/simonhull/quill/record"
)

// block is an output being written by the running template.
type block struct {
	rec  record.Record
	text strings.Builder
}

// session is the state of one template execution. Template text is
// written through it and lands in the open block, or in the main output
// when no block is open.
type session struct {
	acc      *record.Accumulator
	report   *diag.Report
	encoding record.Encoding
	main     block
	open     *block
}

func newSession(acc *record.Accumulator, report *diag.Report, enc record.Encoding) *session {
	s := &session{acc: acc, report: report, encoding: enc}
	s.main.rec.Encoding = enc
	return s
}

// Write implements io.Writer for template execution.
func (s *session) Write(p []byte) (int, error) {
	return s.current().text.Write(p)
}

func (s *session) current() *block {
	if s.open != nil {
		return s.open
	}
	return &s.main
}

// startFile opens a block for path, closing any block still open. An
// empty path routes the block into the main output.
func (s *session) startFile(path string) (string, error) {
	if s.open != nil {
		s.endFile()
	}
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	s.open = &block{rec: record.Record{Path: path, Encoding: s.encoding}}
	return "", nil
}

// endFile closes the open block and hands it to the accumulator.
func (s *session) endFile() string {
	if s.open == nil {
		return ""
	}
	b := s.open
	s.open = nil
	b.rec.Content = b.text.String()
	s.acc.Append(b.rec)
	return ""
}

// finish closes a block left open at the end of the template.
func (s *session) finish() {
	if s.open != nil {
		s.report.Warn("block for %s was not closed with end_file", s.open.rec.Path)
		s.endFile()
	}
}

func (s *session) meta() *record.Metadata {
	return &s.current().rec.Metadata
}

// funcs returns the block functions bound to this session.
func (s *session) funcs() template.FuncMap {
	return template.FuncMap{
		"file":       s.startFile,
		"start_file": s.startFile,
		"startFile":  s.startFile,
		"end_file":   s.endFile,
		"endFile":    s.endFile,

		"project": func(path string) string {
			s.current().rec.Project = path
			return ""
		},
		"preserve": func() string {
			s.current().rec.PreserveExisting = true
			return ""
		},
		"encoding": func(name string) (string, error) {
			enc, err := record.LookupEncoding(name)
			if err != nil {
				return "", err
			}
			s.current().rec.Encoding = enc
			return "", nil
		},
		"build_action": func(action string) string {
			s.meta().BuildAction = action
			return ""
		},
		"copy_to_output": func(value string) string {
			s.meta().CopyToOutputDirectory = value
			return ""
		},
		"custom_tool": func(tool string) string {
			s.meta().CustomTool = tool
			return ""
		},
		"custom_tool_namespace": func(ns string) string {
			s.meta().CustomToolNamespace = ns
			return ""
		},
		"build_property": func(name, value string) string {
			m := s.meta()
			*m = m.Merge(record.Metadata{BuildProperties: []record.Property{{Name: name, Value: value}}})
			return ""
		},
		"reference": func(names ...string) string {
			m := s.meta()
			*m = m.Merge(record.Metadata{References: names})
			return ""
		},
	}
}

// mainRecord returns the main output, or false when it holds only
// whitespace.
func (s *session) mainRecord(path string) (record.Record, bool) {
	content := s.main.text.String()
	if strings.TrimSpace(content) == "" {
		return record.Record{}, false
	}
	rec := s.main.rec
	rec.Path = path
	rec.Content = content
	return rec, true
}

// stubFuncs lets templates parse before a session exists.
func stubFuncs() template.FuncMap {
	return (&session{report: diag.NewReport("")}).funcs()
}
