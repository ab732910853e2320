// Package quill generates source files from text templates and keeps the
// generated outputs in step with the projects that own them.
package quill

// Version is the current quill release.
const Version = "0.4.0"
