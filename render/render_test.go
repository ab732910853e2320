package render

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/quill/diag"
	"github.com/simonhull/quill/record"
)

func newFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func render(t *testing.T, fs afero.Fs, path string, data map[string]any) *Output {
	t.Helper()
	out, err := NewRenderer(fs).Render(path, data)
	require.NoError(t, err)
	return out
}

func byPath(records []record.Record) map[string]record.Record {
	out := make(map[string]record.Record, len(records))
	for _, r := range records {
		out[r.Path] = r
	}
	return out
}

func TestRender_BlocksAndMainOutput(t *testing.T) {
	fs := newFS(t, map[string]string{
		"/sln/App/Gen.tt": `---
extension: .g.cs
---
// generated for {{ .name }}
{{ file "Models/User.cs" }}{{ build_action "Compile" }}class User {}{{ end_file }}
{{- file "models/user.cs" }} // appended{{ end_file }}`,
	})

	out := render(t, fs, "/sln/App/Gen.tt", map[string]any{"name": "App"})

	require.Len(t, out.Records, 2)
	user := out.Records[0]
	assert.Equal(t, "/sln/App/Models/User.cs", user.Path)
	assert.Equal(t, "class User {} // appended", user.Content)
	assert.Equal(t, "Compile", user.Metadata.BuildAction)

	main := out.Records[1]
	assert.Equal(t, "/sln/App/Gen.g.cs", main.Path)
	assert.Equal(t, "// generated for App\n", main.Content)
	assert.Empty(t, out.Report.Entries())
}

func TestRender_WhitespaceMainOutputIsDropped(t *testing.T) {
	fs := newFS(t, map[string]string{
		"/t/Gen.tt": "\n  {{ file \"A.cs\" }}a{{ end_file }}\n\t\n",
	})

	out := render(t, fs, "/t/Gen.tt", nil)

	require.Len(t, out.Records, 1)
	assert.Equal(t, "/t/A.cs", out.Records[0].Path)
}

func TestRender_EmptyFileNameWritesMain(t *testing.T) {
	fs := newFS(t, map[string]string{
		"/t/Gen.tt": `{{ file "" }}main text{{ end_file }}`,
	})

	out := render(t, fs, "/t/Gen.tt", nil)

	require.Len(t, out.Records, 1)
	assert.Equal(t, "/t/Gen.cs", out.Records[0].Path)
	assert.Equal(t, "main text", out.Records[0].Content)
}

func TestRender_Decorators(t *testing.T) {
	fs := newFS(t, map[string]string{
		"/t/Gen.tt": `{{ file "../Other/Res.resx" }}
{{- project "../Other/Other.csproj" }}
{{- preserve }}
{{- encoding "utf-16" }}
{{- copy_to_output "PreserveNewest" }}
{{- custom_tool "ResXFileCodeGenerator" }}
{{- custom_tool_namespace "Other.Resources" }}
{{- build_property "Visible" "false" }}
{{- build_property "Visible" "true" }}
{{- reference "System.Resources" "System.Xml" }}
{{- reference "system.xml" }}<root/>{{ end_file }}`,
	})

	out := render(t, fs, "/t/Gen.tt", nil)

	require.Len(t, out.Records, 1)
	rec := out.Records[0]
	assert.Equal(t, "/Other/Res.resx", rec.Path)
	assert.Equal(t, "../Other/Other.csproj", rec.Project)
	assert.True(t, rec.PreserveExisting)
	assert.Equal(t, "utf-16le", rec.Encoding.Name())

	want := record.Metadata{
		CopyToOutputDirectory: "PreserveNewest",
		CustomTool:            "ResXFileCodeGenerator",
		CustomToolNamespace:   "Other.Resources",
		BuildProperties:       []record.Property{{Name: "Visible", Value: "false"}},
		References:            []string{"System.Resources", "System.Xml"},
	}
	if diff := cmp.Diff(want, rec.Metadata); diff != "" {
		t.Errorf("metadata (-want +got):\n%s", diff)
	}
}

func TestRender_UnclosedBlockWarns(t *testing.T) {
	fs := newFS(t, map[string]string{
		"/t/Gen.tt": `{{ file "A.cs" }}a{{ file "B.cs" }}b`,
	})

	out := render(t, fs, "/t/Gen.tt", nil)

	got := byPath(out.Records)
	assert.Equal(t, "a", got["/t/A.cs"].Content, "opening a block closes the previous one")
	assert.Equal(t, "b", got["/t/B.cs"].Content)
	require.Len(t, out.Report.Warnings(), 1)
	assert.Contains(t, out.Report.Warnings()[0].Message, "B.cs")
}

func TestRender_DeprecatedOptionWarns(t *testing.T) {
	fs := newFS(t, map[string]string{
		"/t/Gen.tt": "---\ntemplate_dir_output: true\n---\nclass Gen {}\n",
	})

	out := render(t, fs, "/t/Gen.tt", nil)

	assert.False(t, out.Report.HasErrors())
	require.Len(t, out.Report.Warnings(), 1)
	assert.Contains(t, out.Report.Warnings()[0].Message, "template_dir_output")
	require.Len(t, out.Records, 1)
	assert.Equal(t, "class Gen {}\n", out.Records[0].Content)
}

func TestRender_DataFiles(t *testing.T) {
	fs := newFS(t, map[string]string{
		"/t/model.yml":   "namespace: App.Models\nentities: [user, order]\n",
		"/t/extra.jsonc": "{\n  // comments are fine\n  \"namespace\": \"App.Domain\",\n  \"sealed\": true,\n}",
		"/t/Gen.tt": `---
data: [model.yml, extra.jsonc]
---
{{- range .entities }}
{{- file (printf "%s.cs" (pascalCase .)) }}namespace {{ $.namespace }}; class {{ pascalCase . }} {}{{ end_file }}
{{- end }}`,
	})

	out := render(t, fs, "/t/Gen.tt", map[string]any{"namespace": "Override"})

	got := byPath(out.Records)
	require.Len(t, got, 2)
	assert.Equal(t, "namespace Override; class User {}", got["/t/User.cs"].Content)
	assert.Equal(t, "namespace Override; class Order {}", got["/t/Order.cs"].Content)
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		kind     diag.Kind
		contains string
	}{
		{"parse", "{{ .Name }", diag.InvalidOutput, "failed to parse template"},
		{"execute", `{{ dict "odd" }}`, diag.InvalidOutput, "failed to render template"},
		{"encoding", `{{ encoding "klingon" }}`, diag.InvalidOutput, "klingon"},
		{"front matter", "---\nextension: [\n---\n", diag.InvalidOutput, "front matter"},
		{"data file", "---\ndata: [missing.yml]\n---\n", diag.IO, "missing.yml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFS(t, map[string]string{"/t/Gen.tt": tt.template})

			_, err := NewRenderer(fs).Render("/t/Gen.tt", nil)

			require.Error(t, err)
			assert.Equal(t, tt.kind, diag.KindOf(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestRender_MissingTemplate(t *testing.T) {
	_, err := NewRenderer(afero.NewMemMapFs()).Render("/t/Nope.tt", nil)

	assert.Equal(t, diag.IO, diag.KindOf(err))
}

func TestRender_ReparsesChangedSource(t *testing.T) {
	fs := newFS(t, map[string]string{"/t/Gen.tt": "one"})
	r := NewRenderer(fs, WithExtension("txt"))

	first, err := r.Render("/t/Gen.tt", nil)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/t/Gen.tt", []byte("two"), 0644))
	second, err := r.Render("/t/Gen.tt", nil)
	require.NoError(t, err)

	assert.Equal(t, "/t/Gen.txt", first.Records[0].Path)
	assert.Equal(t, "one", first.Records[0].Content)
	assert.Equal(t, "two", second.Records[0].Content)
}

func TestRender_ReusesUnchangedTemplate(t *testing.T) {
	fs := newFS(t, map[string]string{"/t/Gen.tt": "one"})
	r := NewRenderer(fs)

	_, err := r.Render("/t/Gen.tt", nil)
	require.NoError(t, err)
	cached := r.cache["/t/Gen.tt"]
	_, err = r.Render("/t/Gen.tt", nil)
	require.NoError(t, err)

	assert.Same(t, cached, r.cache["/t/Gen.tt"])
}

func TestRender_DefaultEncoding(t *testing.T) {
	fs := newFS(t, map[string]string{"/t/Gen.tt": "x"})
	bom, err := record.LookupEncoding("utf-8-bom")
	require.NoError(t, err)

	out, err := NewRenderer(fs, WithEncoding(bom)).Render("/t/Gen.tt", nil)
	require.NoError(t, err)

	assert.Equal(t, "utf-8-bom", out.Records[0].Encoding.Name())
}

func TestMainOutputPath(t *testing.T) {
	assert.Equal(t, "/t/Gen.cs", MainOutputPath("/t/Gen.tt", ".cs"))
	assert.Equal(t, "/t/Gen.g.cs", MainOutputPath("/t/Gen.tt", "g.cs"))
}

func TestSplitFrontMatter(t *testing.T) {
	fm, body, err := splitFrontMatter([]byte("---\r\nextension: .vb\r\n---\r\nbody"))
	require.NoError(t, err)
	assert.Equal(t, ".vb", fm.Extension)
	assert.Equal(t, "body", string(body))

	_, body, err = splitFrontMatter([]byte("---\n---\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "body", string(body))

	_, body, err = splitFrontMatter([]byte("no header"))
	require.NoError(t, err)
	assert.Equal(t, "no header", string(body))

	_, _, err = splitFrontMatter([]byte("---\nextension: .cs\n"))
	assert.ErrorContains(t, err, "not closed")
}

func TestCaseHelpers(t *testing.T) {
	tests := []struct {
		in                  string
		pascal, camel, snake string
	}{
		{"user_name", "UserName", "userName", "user_name"},
		{"UserName", "UserName", "userName", "user_name"},
		{"HTTPServer", "HttpServer", "httpServer", "http_server"},
		{"db-context", "DBContext", "dbContext", "db_context"},
		{"UserID", "UserId", "userId", "user_id"},
		{"", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.pascal, PascalCase(tt.in))
			assert.Equal(t, tt.camel, CamelCase(tt.in))
			assert.Equal(t, tt.snake, SnakeCase(tt.in))
		})
	}
}

func TestPluralize(t *testing.T) {
	for in, want := range map[string]string{
		"order":    "orders",
		"Category": "Categories",
		"Key":      "Keys",
		"box":      "boxes",
		"Person":   "People",
		"":         "",
	} {
		assert.Equal(t, want, Pluralize(in), in)
	}
}

func TestDictAndDefault(t *testing.T) {
	d, err := Dict("a", 1, "b", "x")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, d)

	_, err = Dict(1, 2)
	assert.Error(t, err)

	assert.Equal(t, "fallback", Default("fallback", ""))
	assert.Equal(t, "set", Default("fallback", "set"))
	assert.Equal(t, "fallback", Default("fallback", nil))
	assert.True(t, strings.HasPrefix(Quote(`a"b`), `"a\"b`))
}
