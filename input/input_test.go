package input

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirmFrom(t *testing.T) {
	tests := []struct {
		answer     string
		defaultYes bool
		want       bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"maybe\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"", true, true},
		{"yes", false, true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := ConfirmFrom(strings.NewReader(tt.answer), &out, "Delete?", tt.defaultYes)
		assert.Equal(t, tt.want, got, "answer %q default %v", tt.answer, tt.defaultYes)
		assert.Contains(t, out.String(), "Delete?")
	}
}

func TestConfirmFrom_Hint(t *testing.T) {
	var out bytes.Buffer
	ConfirmFrom(strings.NewReader("\n"), &out, "Go?", true)
	assert.Contains(t, out.String(), "[Y/n]")
}
