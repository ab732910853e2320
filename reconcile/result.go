package reconcile

import (
	"fmt"

	"github.com/simonhull/quill/diag"
)

// ActionKind classifies what a pass did.
type ActionKind int

const (
	Write ActionKind = iota + 1
	SkipUnchanged
	SkipPreserved
	SkipConflict
	AddItem
	MoveItem
	DeleteItem
	DeleteFolder
	CreateFolder
	SetProperty
	SetBuildProperty
	AddReference
	CheckOut
	WriteManifest
)

var actionNames = map[ActionKind]string{
	Write:            "write",
	SkipUnchanged:    "unchanged",
	SkipPreserved:    "preserved",
	SkipConflict:     "kept",
	AddItem:          "add",
	MoveItem:         "move",
	DeleteItem:       "delete",
	DeleteFolder:     "rmdir",
	CreateFolder:     "mkdir",
	SetProperty:      "set",
	SetBuildProperty: "set-build",
	AddReference:     "reference",
	CheckOut:         "checkout",
	WriteManifest:    "manifest",
}

// String returns the short action name used in plan output.
func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// MarshalText renders the kind by name.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Mutates reports whether the action changed the filesystem or the
// project tree.
func (k ActionKind) Mutates() bool {
	switch k {
	case SkipUnchanged, SkipPreserved, SkipConflict:
		return false
	default:
		return true
	}
}

// Action is one step a pass took.
type Action struct {
	Kind   ActionKind `yaml:"action"`
	Path   string     `yaml:"path"`
	Detail string     `yaml:"detail,omitempty"`
}

// Result is the outcome of a pass. It is returned even when the pass fails,
// listing what happened before the failure.
type Result struct {
	Template string
	Actions  []Action
	Report   *diag.Report
}

func newResult(template string) *Result {
	return &Result{Template: template, Report: diag.NewReport(template)}
}

func (r *Result) add(kind ActionKind, path, detail string) {
	r.Actions = append(r.Actions, Action{Kind: kind, Path: path, Detail: detail})
}

// Count returns how many actions have one of the given kinds.
func (r *Result) Count(kinds ...ActionKind) int {
	n := 0
	for _, a := range r.Actions {
		for _, k := range kinds {
			if a.Kind == k {
				n++
				break
			}
		}
	}
	return n
}

// Mutations returns how many actions changed anything.
func (r *Result) Mutations() int {
	n := 0
	for _, a := range r.Actions {
		if a.Kind.Mutates() {
			n++
		}
	}
	return n
}

// Filter returns the actions of the given kinds, in order.
func (r *Result) Filter(kinds ...ActionKind) []Action {
	var out []Action
	for _, a := range r.Actions {
		for _, k := range kinds {
			if a.Kind == k {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
