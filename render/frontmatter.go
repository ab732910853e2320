package render

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the optional YAML header of a template:
//
//	---
//	extension: .g.cs
//	encoding: utf-8-bom
//	data: [model.yml]
//	---
type FrontMatter struct {
	Extension string   `yaml:"extension"` // main output extension
	Encoding  string   `yaml:"encoding"`  // default encoding of every output
	Data      []string `yaml:"data"`      // data files, relative to the template

	// TemplateDirOutput is accepted for old templates and ignored: outputs
	// always resolve against the template's directory.
	TemplateDirOutput *bool `yaml:"template_dir_output"`
}

var fence = []byte("---")

// splitFrontMatter separates a leading front matter block from the
// template body. Without one, the whole source is the body.
func splitFrontMatter(src []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter

	rest, ok := cutLine(src, fence)
	if !ok {
		return fm, src, nil
	}
	if body, empty := cutLine(rest, fence); empty {
		return fm, body, nil
	}
	end :=bytes.Index(rest, append([]byte("\n"), fence...))
	if end < 0 {
		return fm, nil, fmt.Errorf("front matter is not closed with ---")
	}
	header := rest[:end+1]
	body := rest[end+1+len(fence):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 && len(bytes.TrimSpace(body[:i])) == 0 {
		body = body[i+1:]
	}

	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, nil, fmt.Errorf("parsing front matter: %w", err)
	}
	return fm, body, nil
}

// cutLine reports whether src starts with a line holding only marker, and
// returns what follows that line.
func cutLine(src, marker []byte) ([]byte, bool) {
	i := bytes.IndexByte(src, '\n')
	if i < 0 {
		return nil, false
	}
	if !bytes.Equal(bytes.TrimSpace(src[:i]), marker) {
		return nil, false
	}
	return src[i+1:], true
}
