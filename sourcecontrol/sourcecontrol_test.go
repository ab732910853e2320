package sourcecontrol

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/quill/exec"
)

type response struct {
	out string
	err error
}

// fakeRunner answers commands by their joined command line.
type fakeRunner struct {
	responses map[string]response
	calls     []string
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, line)
	r, ok := f.responses[line]
	if !ok {
		return nil, &exec.ExitError{Command: name, Code: 1}
	}
	return []byte(r.out), r.err
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"custom", "git", "none", "p4", "tf"}, r.Names())

	scc, err := r.Open("", &fakeRunner{}, Commands{})
	require.NoError(t, err)
	assert.Nil(t, scc)

	scc, err = r.Open("Git", &fakeRunner{}, Commands{})
	require.NoError(t, err)
	assert.IsType(t, &Git{}, scc)

	_, err = r.Open("svn", &fakeRunner{}, Commands{})
	assert.ErrorContains(t, err, "unknown source control provider")

	assert.Error(t, r.Register("git", func(Runner, Commands) (Provider, error) { return nil, nil }))
	assert.Error(t, r.Register("", func(Runner, Commands) (Provider, error) { return nil, nil }))
	assert.Error(t, r.Register("x", nil))

	_, err = r.Open("custom", &fakeRunner{}, Commands{})
	assert.Error(t, err, "custom needs commands")
}

func TestGit(t *testing.T) {
	run := &fakeRunner{responses: map[string]response{
		"git -C /repo/src ls-files --error-unmatch -- a.cs": {out: "a.cs\n"},
	}}
	g := NewGit(run)
	ctx := context.Background()

	ok, err := g.IsUnderSourceControl(ctx, "/repo/src/a.cs")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsUnderSourceControl(ctx, "/repo/src/new.cs")
	require.NoError(t, err)
	assert.False(t, ok)

	out, err := g.IsCheckedOut(ctx, "/repo/src/a.cs")
	require.NoError(t, err)
	assert.True(t, out)
	assert.NoError(t, g.CheckOut(ctx, "/repo/src/a.cs"))
	assert.Len(t, run.calls, 2, "checkout runs nothing")
}

func TestGitMissingBinary(t *testing.T) {
	run := &fakeRunner{responses: map[string]response{
		"git -C /r ls-files --error-unmatch -- a.cs": {err: errors.New("executable file not found")},
	}}

	_, err := NewGit(run).IsUnderSourceControl(context.Background(), "/r/a.cs")
	assert.Error(t, err)
}

func TestPerforce(t *testing.T) {
	run := &fakeRunner{responses: map[string]response{
		"p4 -ztag fstat /ws/a.cs": {out: "... depotFile //depot/a.cs\n... clientFile /ws/a.cs\n... headRev 3\n"},
		"p4 -ztag fstat /ws/b.cs": {out: "... depotFile //depot/b.cs\n... action edit\n"},
		"p4 edit /ws/a.cs":        {out: "//depot/a.cs#3 - opened for edit\n"},
	}}
	p := NewPerforce(run)
	ctx := context.Background()

	tracked, err := p.IsUnderSourceControl(ctx, "/ws/a.cs")
	require.NoError(t, err)
	assert.True(t, tracked)

	tracked, err = p.IsUnderSourceControl(ctx, "/ws/untracked.cs")
	require.NoError(t, err)
	assert.False(t, tracked)

	out, err := p.IsCheckedOut(ctx, "/ws/a.cs")
	require.NoError(t, err)
	assert.False(t, out)

	out, err = p.IsCheckedOut(ctx, "/ws/b.cs")
	require.NoError(t, err)
	assert.True(t, out)

	require.NoError(t, p.CheckOut(ctx, "/ws/a.cs"))
	assert.Error(t, p.CheckOut(ctx, "/ws/locked.cs"))
}

func TestParseTagged(t *testing.T) {
	got := parseTagged([]byte("... depotFile //d/a\n... action add\nnoise\n... action edit\n"))
	want := map[string]string{"depotFile": "//d/a", "action": "add"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseTagged mismatch (-want +got):\n%s", diff)
	}
}

func TestTFVC(t *testing.T) {
	run := &fakeRunner{responses: map[string]response{
		"tf vc info /ws/A.cs":                  {out: "Local information:\n"},
		"tf vc status /ws/A.cs /format:brief": {out: "File name Change Local path\na.cs      edit   /ws/A.cs\n"},
		"tf vc status /ws/B.cs /format:brief": {out: "There are no pending changes.\n"},
		"tf vc checkout /ws/B.cs":              {out: "B.cs\n"},
	}}
	tf := NewTFVC(run)
	ctx := context.Background()

	tracked, err := tf.IsUnderSourceControl(ctx, "/ws/A.cs")
	require.NoError(t, err)
	assert.True(t, tracked)

	out, err := tf.IsCheckedOut(ctx, "/ws/A.cs")
	require.NoError(t, err)
	assert.True(t, out)

	out, err = tf.IsCheckedOut(ctx, "/ws/B.cs")
	require.NoError(t, err)
	assert.False(t, out)

	require.NoError(t, tf.CheckOut(ctx, "/ws/B.cs"))
}

func TestCustom(t *testing.T) {
	run := &fakeRunner{responses: map[string]response{
		"hg status -c /r/a.cs": {},
		"lock /r/a.cs --edit":  {},
	}}
	c, err := NewCustom(run, Commands{
		Status:   []string{"hg", "status", "-c", "{path}"},
		CheckOut: []string{"lock", "{path}", "--edit"},
	})
	require.NoError(t, err)
	ctx := context.Background()

	tracked, err := c.IsUnderSourceControl(ctx, "/r/a.cs")
	require.NoError(t, err)
	assert.True(t, tracked)

	out, err := c.IsCheckedOut(ctx, "/r/a.cs")
	require.NoError(t, err)
	assert.False(t, out)

	require.NoError(t, c.CheckOut(ctx, "/r/a.cs"))
	assert.Equal(t, []string{"hg status -c /r/a.cs", "lock /r/a.cs --edit"}, run.calls)
}
