// Package render runs text templates and collects what they generate.
//
// A template writes any number of outputs. Text between {{ file "path" }}
// and {{ end_file }} becomes one output; decorator functions called inside
// the block set its metadata:
//
//	{{ range .entities }}
//	{{ file (printf "Models/%s.cs" (pascalCase .name)) }}{{ build_action "Compile" }}
//	public partial class {{ pascalCase .name }} { }
//	{{ end_file }}
//	{{ end }}
//
// Text outside any block goes to the template's main output, named after
// the template with the configured extension. The main output is only
// produced when it holds more than whitespace.
package render

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/simonhull/quill/diag"
	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/record"
)

// DefaultExtension is the main output extension when neither front matter
// nor configuration sets one.
const DefaultExtension = ".cs"

// Output is what one template run produced.
type Output struct {
	Template string
	Records  []record.Record
	Report   *diag.Report
}

// Renderer parses and executes templates. Parsed templates are cached by
// path and reparsed when their source changes. A Renderer is safe for
// concurrent use.
type Renderer struct {
	fs        afero.Fs
	extension string
	encoding  record.Encoding
	log       *zap.Logger

	mu    sync.RWMutex
	cache map[string]*parsed
}

type parsed struct {
	src  string
	tmpl *template.Template
	fm   FrontMatter
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithExtension sets the default main output extension.
func WithExtension(ext string) Option {
	return func(r *Renderer) {
		if ext != "" {
			r.extension = ext
		}
	}
}

// WithEncoding sets the default output encoding.
func WithEncoding(enc record.Encoding) Option {
	return func(r *Renderer) { r.encoding = enc }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Renderer) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRenderer creates a renderer reading templates and data from fs.
func NewRenderer(fs afero.Fs, opts ...Option) *Renderer {
	r := &Renderer{
		fs:        fs,
		extension: DefaultExtension,
		encoding:  record.UTF8,
		log:       zap.NewNop(),
		cache:     make(map[string]*parsed),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render executes the template at path. Data files named in the front
// matter are loaded first; data overrides them key by key.
func (r *Renderer) Render(path string, data map[string]any) (*Output, error) {
	path = filepath.Clean(path)
	out, err := r.render(path, data)
	if err != nil {
		return nil, diag.WithTemplate(err, path)
	}
	return out, nil
}

func (r *Renderer) render(path string, data map[string]any) (*Output, error) {
	p, err := r.parse(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	report := diag.NewReport(path)

	if p.fm.TemplateDirOutput != nil {
		report.Warn("template_dir_output is deprecated and ignored: outputs always resolve against the template's directory")
	}

	enc := r.encoding
	if p.fm.Encoding != "" {
		if enc, err = record.LookupEncoding(p.fm.Encoding); err != nil {
			return nil, diag.Wrap(diag.InvalidOutput, path, err)
		}
	}

	dot := map[string]any{}
	for _, f := range p.fm.Data {
		loaded, err := LoadData(r.fs, paths.Normalize(dir, f))
		if err != nil {
			return nil, diag.Wrap(diag.IO, path, err)
		}
		mergeData(dot, loaded)
	}
	mergeData(dot, data)

	acc := record.NewAccumulator(dir)
	s := newSession(acc, report, enc)

	tmpl, err := p.tmpl.Clone()
	if err != nil {
		return nil, fmt.Errorf("cloning template: %w", err)
	}
	if err := tmpl.Funcs(s.funcs()).Execute(s, dot); err != nil {
		return nil, diag.Wrap(diag.InvalidOutput, path, fmt.Errorf("failed to render template: %w", err))
	}
	s.finish()

	ext := p.fm.Extension
	if ext == "" {
		ext = r.extension
	}
	if rec, ok := s.mainRecord(MainOutputPath(path, ext)); ok {
		acc.Append(rec)
	}

	records, err := acc.Finalize()
	if err != nil {
		return nil, err
	}
	r.log.Debug("rendered template", zap.String("template", path), zap.Int("outputs", len(records)))
	return &Output{Template: path, Records: records, Report: report}, nil
}

// parse returns the cached template for path, reparsing when the source
// on disk changed.
func (r *Renderer) parse(path string) (*parsed, error) {
	src, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, diag.Wrap(diag.IO, path, fmt.Errorf("failed to read template: %w", err))
	}

	r.mu.RLock()
	p, ok := r.cache[path]
	r.mu.RUnlock()
	if ok && p.src == string(src) {
		return p, nil
	}

	fm, body, err := splitFrontMatter(src)
	if err != nil {
		return nil, diag.Wrap(diag.InvalidOutput, path, err)
	}
	tmpl, err := template.New(filepath.Base(path)).
		Funcs(helperFuncs()).
		Funcs(stubFuncs()).
		Parse(string(body))
	if err != nil {
		return nil, diag.Wrap(diag.InvalidOutput, path, fmt.Errorf("failed to parse template: %w", err))
	}

	p = &parsed{src: string(src), tmpl: tmpl, fm: fm}
	r.mu.Lock()
	r.cache[path] = p
	r.mu.Unlock()
	return p, nil
}

// MainOutputPath returns the main output path of a template: its name
// without extension plus ext, next to the template.
func MainOutputPath(templatePath, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(filepath.Dir(templatePath), paths.TrimExt(templatePath)+ext)
}
