package msbuild_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/quill/diag"
	"github.com/simonhull/quill/filesystem"
	"github.com/simonhull/quill/msbuild"
	"github.com/simonhull/quill/project"
	"github.com/simonhull/quill/reconcile"
	"github.com/simonhull/quill/record"
)

const csproj = `<?xml version="1.0" encoding="utf-8"?>
<Project ToolsVersion="15.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <RootNamespace>App</RootNamespace>
  </PropertyGroup>
  <ItemGroup>
    <Reference Include="System" />
  </ItemGroup>
  <ItemGroup>
    <Compile Include="Program.cs" />
    <Compile Include="Models\User.cs" />
    <None Include="Gen.tt">
      <Generator>TextTemplatingFileGenerator</Generator>
    </None>
    <Compile Include="Gen.cs">
      <DependentUpon>Gen.tt</DependentUpon>
    </Compile>
    <Folder Include="Empty\" />
  </ItemGroup>
  <Target Name="AfterBuild" />
</Project>
`

const projectPath = "/src/App/App.csproj"

func newHost(t *testing.T) (afero.Fs, *msbuild.Host) {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		projectPath:                csproj,
		"/src/App/Program.cs":      "class Program {}",
		"/src/App/Models/User.cs":  "class User {}",
		"/src/App/Gen.tt":          "<# #>",
		"/src/App/Gen.cs":          "class Gen {}",
		"/src/App/bin/Debug/x.dll": "",
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	require.NoError(t, fs.MkdirAll("/src/App/Empty", 0755))

	host, err := msbuild.Open(fs, []string{projectPath})
	require.NoError(t, err)
	return fs, host
}

func reopen(t *testing.T, fs afero.Fs) *msbuild.Host {
	t.Helper()
	host, err := msbuild.Open(fs, []string{projectPath})
	require.NoError(t, err)
	return host
}

func find(t *testing.T, h *msbuild.Host, path string) project.Item {
	t.Helper()
	item, err := h.FindItem(path)
	require.NoError(t, err)
	require.NotNil(t, item, "no item at %s", path)
	return item
}

func names(items []project.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name()
	}
	return out
}

func TestOpen_BuildsTree(t *testing.T) {
	_, h := newHost(t)

	projects, err := h.Projects()
	require.NoError(t, err)
	require.Len(t, projects, 1)
	root := projects[0]
	assert.Equal(t, project.KindProject, root.Kind())
	assert.Nil(t, root.Parent())

	assert.Equal(t, []string{"Empty", "Models", "Gen.tt", "Program.cs"}, names(root.Children()))

	gen := find(t, h, "/src/App/Gen.cs")
	assert.Equal(t, "/src/App/Gen.tt", gen.Parent().Path())
	assert.Equal(t, []string{"Gen.cs"}, names(find(t, h, "/src/App/Gen.tt").Children()))

	user := find(t, h, "/src/App/Models/User.cs")
	models := user.Parent()
	assert.Equal(t, project.KindFolder, models.Kind())
	assert.Equal(t, projectPath, models.Parent().Path())
	assert.Equal(t, projectPath, user.Project().Path())

	missing, err := h.FindItem("/src/App/Nope.cs")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOpen_RejectsNonProject(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/x.csproj", []byte("<Solution/>"), 0644))

	_, err := msbuild.Open(fs, []string{"/x.csproj"})

	assert.ErrorContains(t, err, "not <Project>")
}

func TestDiscover(t *testing.T) {
	fs, _ := newHost(t)
	require.NoError(t, afero.WriteFile(fs, "/src/App/obj/Copy.csproj", []byte(csproj), 0644))

	h, err := msbuild.Discover(fs, "/src", filesystem.WalkOptions{})
	require.NoError(t, err)

	projects, err := h.Projects()
	require.NoError(t, err)
	assert.Equal(t, []string{"App.csproj"}, names(projects))
}

func TestAddFromFile_NestsUnderFile(t *testing.T) {
	fs, h := newHost(t)
	require.NoError(t, afero.WriteFile(fs, "/src/App/Gen.Models.cs", []byte("x"), 0644))

	item, err := h.AddFromFile(find(t, h, "/src/App/Gen.tt"), "/src/App/Gen.Models.cs")
	require.NoError(t, err)
	assert.Equal(t, "/src/App/Gen.tt", item.Parent().Path())

	saved, err := afero.ReadFile(fs, projectPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), `<Compile Include="Gen.Models.cs">`)
	assert.Contains(t, string(saved), `<Target Name="AfterBuild"></Target>`)
	assert.Contains(t, string(saved), `xmlns="http://schemas.microsoft.com/developer/msbuild/2003"`)

	again := reopen(t, fs)
	assert.Equal(t, []string{"Gen.cs", "Gen.Models.cs"}, names(find(t, again, "/src/App/Gen.tt").Children()))
}

func TestAddFromFile_RequiresFile(t *testing.T) {
	_, h := newHost(t)
	projects, _ := h.Projects()

	_, err := h.AddFromFile(projects[0], "/src/App/Missing.cs")

	assert.Error(t, err)
}

func TestAddFromFile_MovesOutOfNesting(t *testing.T) {
	fs, h := newHost(t)
	projects, _ := h.Projects()

	item, err := h.AddFromFile(projects[0], "/src/App/Gen.cs")
	require.NoError(t, err)
	assert.Equal(t, projectPath, item.Parent().Path())

	saved, err := afero.ReadFile(fs, projectPath)
	require.NoError(t, err)
	assert.NotContains(t, string(saved), "DependentUpon")
}

func TestFolders(t *testing.T) {
	fs, h := newHost(t)
	projects, _ := h.Projects()
	root := projects[0]

	_, err := h.AddFolder(root, "Empty")
	assert.ErrorIs(t, err, project.ErrFolderExists)

	dto, err := h.AddFolder(find(t, h, "/src/App/Models"), "Dto")
	require.NoError(t, err)
	assert.Equal(t, project.KindFolder, dto.Kind())
	exists, err := afero.DirExists(fs, "/src/App/Models/Dto")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, fs.MkdirAll("/src/App/Assets", 0755))
	assets, err := h.AddFromDirectory(root, "/src/App/Assets")
	require.NoError(t, err)
	assert.Equal(t, "Assets", assets.Name())

	saved, err := afero.ReadFile(fs, projectPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), `<Folder Include="Models\Dto\"></Folder>`)
	assert.Contains(t, string(saved), `<Folder Include="Assets\"></Folder>`)

	require.NoError(t, afero.WriteFile(fs, "/src/App/Empty/First.cs", []byte("x"), 0644))
	_, err = h.AddFromFile(find(t, h, "/src/App/Empty"), "/src/App/Empty/First.cs")
	require.NoError(t, err)
	saved, err = afero.ReadFile(fs, projectPath)
	require.NoError(t, err)
	assert.NotContains(t, string(saved), `Include="Empty\"`, "a folder item goes once a file lives there")
}

func TestDelete(t *testing.T) {
	fs, h := newHost(t)

	require.NoError(t, h.Delete(find(t, h, "/src/App/Gen.tt")))

	for _, p := range []string{"/src/App/Gen.tt", "/src/App/Gen.cs"} {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.False(t, exists, p)
		item, err := h.FindItem(p)
		require.NoError(t, err)
		assert.Nil(t, item, p)
	}

	models := find(t, h, "/src/App/Models")
	require.NoError(t, h.Delete(models))
	exists, err := afero.DirExists(fs, "/src/App/Models")
	require.NoError(t, err)
	assert.False(t, exists)

	projects, _ := h.Projects()
	assert.Error(t, h.Delete(projects[0]))
}

func TestProperties(t *testing.T) {
	fs, h := newHost(t)
	tt := find(t, h, "/src/App/Gen.tt")

	action, err := h.Property(tt, project.PropBuildAction)
	require.NoError(t, err)
	assert.Equal(t, "None", action)

	tool, err := h.Property(tt, project.PropCustomTool)
	require.NoError(t, err)
	assert.Equal(t, "TextTemplatingFileGenerator", tool)

	require.NoError(t, h.SetProperty(tt, project.PropBuildAction, "Content"))
	require.NoError(t, h.SetProperty(tt, project.PropCopyToOutputDirectory, "Always"))
	require.NoError(t, h.SetBuildProperty(tt, "LastGenOutput", "Gen.cs"))

	again := reopen(t, fs)
	tt = find(t, again, "/src/App/Gen.tt")
	action, _ = again.Property(tt, project.PropBuildAction)
	assert.Equal(t, "Content", action)
	copyTo, _ := again.Property(tt, project.PropCopyToOutputDirectory)
	assert.Equal(t, "Always", copyTo)
	last, _ := again.BuildProperty(tt, "LastGenOutput")
	assert.Equal(t, "Gen.cs", last)

	_, err = again.Property(tt, "Bogus")
	assert.ErrorIs(t, err, project.ErrUnsupportedProperty)
	_, err = again.Property(find(t, again, "/src/App/Models"), project.PropBuildAction)
	assert.ErrorIs(t, err, project.ErrUnsupportedProperty)

	projects, _ := again.Projects()
	ns, err := again.BuildProperty(projects[0], "RootNamespace")
	require.NoError(t, err)
	assert.Equal(t, "App", ns)
}

func TestReferences(t *testing.T) {
	_, h := newHost(t)
	projects, _ := h.Projects()
	root := projects[0]

	require.NoError(t, h.AddReference(root, "System.Xml"))
	require.NoError(t, h.AddReference(root, "system.xml"))

	refs, err := h.References(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"System", "System.Xml"}, refs)
}

func TestForeignItem(t *testing.T) {
	_, h := newHost(t)
	_, other := newHost(t)

	_, err := h.Property(find(t, other, "/src/App/Gen.tt"), project.PropBuildAction)

	assert.ErrorIs(t, err, project.ErrUnavailable)
}

func TestReconcileAgainstProjectFile(t *testing.T) {
	fs, h := newHost(t)
	gw := project.NewGateway(h)
	engine := reconcile.New(gw, fs)
	pass := reconcile.Pass{Template: "/src/App/Gen.tt"}
	records := []record.Record{
		{Path: "Gen.cs", Content: "class Gen { int X; }"},
		{Path: "Dto/UserDto.cs", Content: "class UserDto {}", Metadata: record.Metadata{BuildAction: "Compile"}},
	}

	first, err := engine.Run(context.Background(), pass, records)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count(reconcile.WriteManifest))

	again := reopen(t, fs)
	dto := find(t, again, "/src/App/Dto/UserDto.cs")
	assert.Equal(t, "/src/App/Dto", dto.Parent().Path())
	manifest := find(t, again, "/src/App/Gen.tt.log")
	assert.Equal(t, "/src/App/Gen.tt", manifest.Parent().Path())

	second, err := reconcile.New(project.NewGateway(again), fs).Run(context.Background(), pass, records)
	require.NoError(t, err)
	assert.Zero(t, second.Mutations(), "actions: %v", second.Actions)
}

// recordingSCC tracks every path and records checkouts.
type recordingSCC struct {
	tracked    bool
	refuse     error
	checkedOut []string
}

func (s *recordingSCC) IsUnderSourceControl(context.Context, string) (bool, error) {
	return s.tracked, nil
}

func (s *recordingSCC) IsCheckedOut(_ context.Context, path string) (bool, error) {
	for _, p := range s.checkedOut {
		if p == path {
			return true, nil
		}
	}
	return false, nil
}

func (s *recordingSCC) CheckOut(_ context.Context, path string) error {
	if s.refuse != nil {
		return s.refuse
	}
	s.checkedOut = append(s.checkedOut, path)
	return nil
}

func openWithSCC(t *testing.T, scc *recordingSCC) (afero.Fs, *msbuild.Host) {
	t.Helper()
	fs, _ := newHost(t)
	h, err := msbuild.Open(fs, []string{projectPath}, msbuild.WithSourceControl(scc))
	require.NoError(t, err)
	return fs, h
}

func TestChecksOutProjectFileBeforeSaving(t *testing.T) {
	scc := &recordingSCC{tracked: true}
	fs, h := openWithSCC(t, scc)
	require.NoError(t, afero.WriteFile(fs, "/src/App/New.cs", []byte("class New {}"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/src/App/Other.cs", []byte("class Other {}"), 0644))

	projects, _ := h.Projects()
	root := projects[0]
	_, err := h.AddFromFile(root, "/src/App/New.cs")
	require.NoError(t, err)
	_, err = h.AddFromFile(root, "/src/App/Other.cs")
	require.NoError(t, err)

	assert.Equal(t, []string{projectPath}, scc.checkedOut, "checked out once")
}

func TestReconcileChecksOutProjectFile(t *testing.T) {
	scc := &recordingSCC{tracked: true}
	fs, h := openWithSCC(t, scc)

	res, err := reconcile.New(project.NewGateway(h), fs).Run(context.Background(),
		reconcile.Pass{Template: "/src/App/Gen.tt"},
		[]record.Record{{Path: "Gen.cs", Content: "class Gen {}"}, {Path: "New.cs", Content: "class New {}"}})
	require.NoError(t, err)
	require.NotZero(t, res.Count(reconcile.AddItem))

	assert.Contains(t, scc.checkedOut, projectPath)
}

func TestUntrackedProjectFileIsNotCheckedOut(t *testing.T) {
	scc := &recordingSCC{}
	fs, h := openWithSCC(t, scc)
	require.NoError(t, afero.WriteFile(fs, "/src/App/New.cs", []byte("class New {}"), 0644))

	projects, _ := h.Projects()
	_, err := h.AddFromFile(projects[0], "/src/App/New.cs")
	require.NoError(t, err)

	assert.Empty(t, scc.checkedOut)
	assert.Contains(t, readProject(t, fs), `Include="New.cs"`)
}

func TestRefusedCheckOutLeavesProjectFile(t *testing.T) {
	scc := &recordingSCC{tracked: true, refuse: errors.New("exclusive lock")}
	fs, h := openWithSCC(t, scc)
	require.NoError(t, afero.WriteFile(fs, "/src/App/New.cs", []byte("class New {}"), 0644))

	projects, _ := h.Projects()
	_, err := h.AddFromFile(projects[0], "/src/App/New.cs")

	assert.Equal(t, diag.SourceControl, diag.KindOf(err))
	assert.Equal(t, csproj, readProject(t, fs))
}

func readProject(t *testing.T, fs afero.Fs) string {
	t.Helper()
	data, err := afero.ReadFile(fs, projectPath)
	require.NoError(t, err)
	return string(data)
}
