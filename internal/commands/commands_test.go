package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/simonhull/quill"
)

const appProject = `<?xml version="1.0" encoding="utf-8"?>
<Project ToolsVersion="15.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <ItemGroup>
    <Compile Include="Program.cs" />
    <None Include="Gen.tt" />
  </ItemGroup>
</Project>
`

const genTemplate = `{{ file "Models/User.g.cs" }}{{ build_action "Compile" }}class User {}{{ end_file }}
class Gen {}
`

func newSolution(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range map[string]string{
		"/sln/App/App.csproj": appProject,
		"/sln/App/Program.cs": "class Program {}",
		"/sln/App/Gen.tt":     genTemplate,
	} {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

// runQuill runs the CLI against fs with /sln as working directory.
func runQuill(t *testing.T, fs afero.Fs, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(fs)
	a.stdin = strings.NewReader(stdin)
	a.stdout = &out
	a.getwd = func() (string, error) { return "/sln", nil }

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	return ok
}

func TestGenerate(t *testing.T) {
	fs := newSolution(t)

	out, err := runQuill(t, fs, "", "generate", "App/Gen.tt")
	require.NoError(t, err, out)

	assert.Equal(t, "class User {}", readFile(t, fs, "/sln/App/Models/User.g.cs"))
	assert.Equal(t, "\nclass Gen {}\n", readFile(t, fs, "/sln/App/Gen.cs"))
	assert.True(t, exists(t, fs, "/sln/App/Gen.tt.log"))

	proj := readFile(t, fs, "/sln/App/App.csproj")
	assert.Contains(t, proj, `Include="Models\User.g.cs"`)
	assert.Contains(t, proj, "<DependentUpon>Gen.tt</DependentUpon>")
	assert.Contains(t, out, "Generated App/Gen.tt")
}

func TestGenerate_SecondRunIsUpToDate(t *testing.T) {
	fs := newSolution(t)
	_, err := runQuill(t, fs, "", "generate", "App/Gen.tt")
	require.NoError(t, err)
	before := readFile(t, fs, "/sln/App/App.csproj")

	out, err := runQuill(t, fs, "", "generate", "App/Gen.tt")
	require.NoError(t, err, out)

	assert.Contains(t, out, "App/Gen.tt is up to date")
	assert.Equal(t, before, readFile(t, fs, "/sln/App/App.csproj"))
}

func TestGenerate_DryRunTouchesNothing(t *testing.T) {
	fs := newSolution(t)

	out, err := runQuill(t, fs, "", "generate", "--dry-run", "App/Gen.tt")
	require.NoError(t, err, out)

	assert.False(t, exists(t, fs, "/sln/App/Models/User.g.cs"))
	assert.False(t, exists(t, fs, "/sln/App/Gen.tt.log"))
	assert.Equal(t, appProject, readFile(t, fs, "/sln/App/App.csproj"))
	assert.Contains(t, out, "Dry run")
}

func TestGenerate_ConflictingFlags(t *testing.T) {
	_, err := runQuill(t, newSolution(t), "", "generate", "--force", "--skip", "App/Gen.tt")

	assert.ErrorContains(t, err, "--force cannot be combined")
}

func TestGenerate_TemplateOutsideSolution(t *testing.T) {
	fs := newSolution(t)
	require.NoError(t, afero.WriteFile(fs, "/sln/Loose.tt", []byte("x"), 0644))

	out, err := runQuill(t, fs, "", "generate", "Loose.tt")

	assert.ErrorContains(t, err, "1 of 1 template failed")
	assert.Contains(t, out, "not part of any project")
}

func TestPlan_YAML(t *testing.T) {
	fs := newSolution(t)

	out, err := runQuill(t, fs, "", "plan", "--format", "yaml", "App/Gen.tt")
	require.NoError(t, err, out)

	var plan []struct {
		Template string `yaml:"template"`
		Actions  []struct {
			Action string `yaml:"action"`
			Path   string `yaml:"path"`
		} `yaml:"actions"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &plan))
	require.Len(t, plan, 1)
	assert.Equal(t, "/sln/App/Gen.tt", plan[0].Template)

	written := map[string]string{}
	for _, a := range plan[0].Actions {
		if a.Action == "write" || a.Action == "manifest" {
			written[a.Path] = a.Action
		}
	}
	assert.Equal(t, map[string]string{
		"/sln/App/Models/User.g.cs": "write",
		"/sln/App/Gen.cs":           "write",
		"/sln/App/Gen.tt.log":       "manifest",
	}, written)
	assert.False(t, exists(t, fs, "/sln/App/Gen.cs"), "plan never writes")
}

func TestPlan_Diff(t *testing.T) {
	fs := newSolution(t)
	_, err := runQuill(t, fs, "", "generate", "App/Gen.tt")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/sln/App/Models/User.g.cs", []byte("class User { int Edited; }"), 0644))

	out, err := runQuill(t, fs, "", "plan", "--diff", "App/Gen.tt")
	require.NoError(t, err, out)

	assert.Contains(t, out, "int Edited")
	assert.Equal(t, "class User { int Edited; }", readFile(t, fs, "/sln/App/Models/User.g.cs"))
}

func TestPlan_UnknownFormat(t *testing.T) {
	_, err := runQuill(t, newSolution(t), "", "plan", "--format", "xml", "App/Gen.tt")

	assert.ErrorContains(t, err, `unknown format "xml"`)
}

func TestClean(t *testing.T) {
	fs := newSolution(t)
	_, err := runQuill(t, fs, "", "generate", "App/Gen.tt")
	require.NoError(t, err)

	out, err := runQuill(t, fs, "", "clean", "--yes", "App/Gen.tt")
	require.NoError(t, err, out)

	assert.False(t, exists(t, fs, "/sln/App/Models/User.g.cs"))
	assert.False(t, exists(t, fs, "/sln/App/Gen.cs"))
	assert.False(t, exists(t, fs, "/sln/App/Gen.tt.log"))
	assert.True(t, exists(t, fs, "/sln/App/Gen.tt"))
	assert.NotContains(t, readFile(t, fs, "/sln/App/App.csproj"), "User.g.cs")
}

func TestClean_DeclinedConfirmation(t *testing.T) {
	fs := newSolution(t)
	_, err := runQuill(t, fs, "", "generate", "App/Gen.tt")
	require.NoError(t, err)

	out, err := runQuill(t, fs, "n\n", "clean", "App/Gen.tt")
	require.NoError(t, err)

	assert.Contains(t, out, "Nothing removed")
	assert.True(t, exists(t, fs, "/sln/App/Models/User.g.cs"))
}

func TestManifest(t *testing.T) {
	fs := newSolution(t)

	out, err := runQuill(t, fs, "", "manifest", "App/Gen.tt")
	require.NoError(t, err)
	assert.Contains(t, out, "No manifest entries")

	_, err = runQuill(t, fs, "", "generate", "App/Gen.tt")
	require.NoError(t, err)
	out, err = runQuill(t, fs, "", "manifest", "App/Gen.tt")
	require.NoError(t, err)

	assert.Contains(t, out, "/sln/App/Models/User.g.cs\n")
	assert.Contains(t, out, "/sln/App/Gen.cs\n")
}

func TestConfigFileApplies(t *testing.T) {
	fs := newSolution(t)
	require.NoError(t, afero.WriteFile(fs, "/sln/quill.yml", []byte("output:\n  extension: .g.cs\n"), 0644))

	_, err := runQuill(t, fs, "", "generate", "App/Gen.tt")
	require.NoError(t, err)

	assert.True(t, exists(t, fs, "/sln/App/Gen.g.cs"))
}

func TestVersion(t *testing.T) {
	out, err := runQuill(t, afero.NewMemMapFs(), "", "version")
	require.NoError(t, err)

	assert.Equal(t, "quill v"+quill.Version+"\n", out)
}

func TestGenerate_All(t *testing.T) {
	fs := newSolution(t)

	out, err := runQuill(t, fs, "", "generate", "--all")
	require.NoError(t, err, out)

	assert.True(t, exists(t, fs, "/sln/App/Gen.cs"))
}

func TestGenerate_NeedsTemplates(t *testing.T) {
	_, err := runQuill(t, newSolution(t), "", "generate")
	assert.ErrorContains(t, err, "no templates given")

	_, err = runQuill(t, newSolution(t), "", "generate", "--all", "App/Gen.tt")
	assert.ErrorContains(t, err, "--all cannot be combined")
}

func TestApp_RendererOutlivesRuns(t *testing.T) {
	fs := newSolution(t)
	a := newApp(fs)
	a.stdout = &bytes.Buffer{}
	a.getwd = func() (string, error) { return "/sln", nil }
	require.NoError(t, a.setup())

	ctx := context.Background()
	_, err := a.execute(ctx, runOptions{templates: []string{"/sln/App/Gen.tt"}})
	require.NoError(t, err)
	first := a.renderer(fs)

	require.NoError(t, afero.WriteFile(fs, "/sln/App/Gen.tt", []byte("class Changed {}\n"), 0644))
	_, err = a.execute(ctx, runOptions{templates: []string{"/sln/App/Gen.tt"}})
	require.NoError(t, err)

	assert.Same(t, first, a.renderer(fs))
	assert.NotSame(t, first, a.renderer(a.workspace(true)), "dry runs render through their own layer")
	assert.Equal(t, "class Changed {}\n", readFile(t, fs, "/sln/App/Gen.cs"))
}

func TestGenerate_ReportsWarningsBeforeErrors(t *testing.T) {
	fs := newSolution(t)
	require.NoError(t, afero.WriteFile(fs, "/sln/Loose.tt", []byte(`{{ file "A.cs" }}a{{ file "B.cs" }}b`), 0644))

	out, err := runQuill(t, fs, "", "generate", "Loose.tt")
	require.Error(t, err)

	warning := strings.Index(out, "was not closed with end_file")
	failure := strings.Index(out, "not part of any project")
	require.NotEqual(t, -1, warning, out)
	require.NotEqual(t, -1, failure, out)
	assert.Less(t, warning, failure)
	assert.Equal(t, 1, strings.Count(out, "was not closed with end_file"))
}
