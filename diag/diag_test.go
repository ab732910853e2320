package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := New(TargetProjectNotFound, "/sln/Other.csproj", "project is not part of the solution")
	assert.Equal(t, "TargetProjectNotFoundError at /sln/Other.csproj: project is not part of the solution", err.Error())

	wrapped := Wrap(IO, "/tmp/a.cs", errors.New("disk full"))
	assert.Equal(t, "IOError at /tmp/a.cs: disk full", wrapped.Error())
}

func TestWrap_KeepsExistingKind(t *testing.T) {
	inner := New(SourceControl, "a.cs", "checkout refused")
	err := Wrap(IO, "a.cs", fmt.Errorf("writing: %w", inner))

	assert.Equal(t, SourceControl, KindOf(err))
	assert.True(t, Is(err, SourceControl))
	assert.False(t, Is(err, IO))
	assert.Nil(t, Wrap(IO, "x", nil))
}

func TestReport_OrderAndTemplateTag(t *testing.T) {
	r := NewReport("/sln/App/Gen.tt")
	r.Warn("option %q is deprecated", "template_dir_output")
	r.Fail(New(UnsupportedBuildAction, "a.cs", "build action %q not offered", "Bogus"))

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, SeverityWarning, entries[0].Severity)
	assert.Equal(t, SeverityError, entries[1].Severity)
	assert.True(t, r.HasErrors())
	assert.Len(t, r.Warnings(), 1)

	var de *Error
	require.True(t, errors.As(r.Err(), &de))
	assert.Equal(t, "/sln/App/Gen.tt", de.Template)
	assert.Contains(t, r.String(), "[warning]")
	assert.Contains(t, r.String(), "[error]")
}

func TestReport_EmptyHasNoError(t *testing.T) {
	r := NewReport("Gen.tt")
	assert.NoError(t, r.Err())
	assert.False(t, r.HasErrors())
	assert.Empty(t, r.String())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "HostUnavailableError", HostUnavailable.String())
	assert.Equal(t, "UnknownError", Kind(99).String())
}
