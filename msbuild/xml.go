package msbuild

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// element is a generic MSBuild XML node. Project files carry arbitrary
// targets and properties, so the whole document is kept and written back
// rather than modelled field by field.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*element `xml:",any"`
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// document is a parsed project file.
type document struct {
	root        *element
	bom         bool
	declaration bool
}

func parseDocument(data []byte) (*document, error) {
	doc := &document{}
	if bytes.HasPrefix(data, utf8BOM) {
		doc.bom = true
		data = data[len(utf8BOM):]
	}
	doc.declaration = bytes.HasPrefix(bytes.TrimSpace(data), []byte("<?xml"))

	var root element
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing project file: %w", err)
	}
	if root.XMLName.Local != "Project" {
		return nil, fmt.Errorf("parsing project file: root element is <%s>, not <Project>", root.XMLName.Local)
	}
	root.normalize()
	doc.root = &root
	return doc, nil
}

// normalize drops namespaces from element names (the default namespace
// stays as an xmlns attribute on the root) and the indentation between
// child elements.
func (e *element) normalize() {
	e.XMLName.Space = ""
	if len(e.Children) > 0 {
		e.Text = ""
	} else {
		e.Text = strings.TrimSpace(e.Text)
	}
	for _, c := range e.Children {
		c.normalize()
	}
}

func (d *document) bytes() ([]byte, error) {
	body, err := xml.MarshalIndent(d.root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("writing project file: %w", err)
	}

	var buf bytes.Buffer
	if d.bom {
		buf.Write(utf8BOM)
	}
	if d.declaration {
		buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	}
	buf.Write(body)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

func newElement(name string, attrs ...string) *element {
	e := &element{XMLName: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return e
}

func (e *element) name() string {
	return e.XMLName.Local
}

func (e *element) attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Space == "" && strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}

// child returns the first child element called name.
func (e *element) child(name string) *element {
	for _, c := range e.Children {
		if strings.EqualFold(c.name(), name) {
			return c
		}
	}
	return nil
}

// metadata returns the text of the child element called name.
func (e *element) metadata(name string) string {
	if c := e.child(name); c != nil {
		return c.Text
	}
	return ""
}

// setMetadata sets, replaces or (for an empty value) removes a metadata
// child element.
func (e *element) setMetadata(name, value string) {
	if value == "" {
		e.removeChildren(func(c *element) bool { return strings.EqualFold(c.name(), name) })
		return
	}
	if c := e.child(name); c != nil {
		c.Text = value
		return
	}
	c := newElement(name)
	c.Text = value
	e.Children = append(e.Children, c)
}

func (e *element) removeChildren(match func(*element) bool) int {
	kept := e.Children[:0]
	removed := 0
	for _, c := range e.Children {
		if match(c) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	e.Children = kept
	return removed
}
