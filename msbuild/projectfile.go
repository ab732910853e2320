package msbuild

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/simonhull/quill/paths"
	"github.com/simonhull/quill/project"
)

// Item types that name something other than a file in the project tree.
var nonFileItems = map[string]bool{
	"reference":           true,
	"projectreference":    true,
	"packagereference":    true,
	"frameworkreference":  true,
	"comreference":        true,
	"bootstrapperpackage": true,
	"service":             true,
	"using":               true,
	"webreferences":       true,
	"analyzer":            true,
}

const folderItem = "Folder"

// projectFile is one loaded project file.
type projectFile struct {
	path string
	dir  string
	doc  *document
}

// entry is an item element that names a file or folder.
type entry struct {
	group *element
	elem  *element
	path  string
	kind  project.Kind
}

func loadProjectFile(fs afero.Fs, path string) (*projectFile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &projectFile{path: path, dir: filepath.Dir(path), doc: doc}, nil
}

func (p *projectFile) save(fs afero.Fs) error {
	data, err := p.doc.bytes()
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, p.path, data, 0644)
}

// entries lists the file and folder items in document order. Wildcard and
// multi-valued includes are skipped.
func (p *projectFile) entries() []entry {
	var out []entry
	for _, group := range p.doc.root.Children {
		if group.name() != "ItemGroup" {
			continue
		}
		for _, e := range group.Children {
			if nonFileItems[strings.ToLower(e.name())] {
				continue
			}
			include := e.attr("Include")
			if include == "" || strings.ContainsAny(include, "*?;$") {
				continue
			}
			kind := project.KindFile
			if strings.EqualFold(e.name(), folderItem) {
				kind = project.KindFolder
			}
			out = append(out, entry{group: group, elem: e, path: paths.Normalize(p.dir, include), kind: kind})
		}
	}
	return out
}

func (p *projectFile) file(path string) *entry {
	for _, e := range p.entries() {
		if e.kind == project.KindFile && paths.Equal(e.path, path) {
			return &e
		}
	}
	return nil
}

// folders returns every folder the tree shows: explicit Folder items and
// the directories between the project and its files.
func (p *projectFile) folders() map[string]string {
	out := make(map[string]string)
	add := func(dir string) {
		for paths.IsWithin(p.dir, dir) && !paths.Equal(dir, p.dir) {
			key := paths.Key(dir)
			if _, ok := out[key]; ok {
				return
			}
			out[key] = dir
			dir = filepath.Dir(dir)
		}
	}
	for _, e := range p.entries() {
		if e.kind == project.KindFolder {
			add(e.path)
		} else {
			add(filepath.Dir(e.path))
		}
	}
	return out
}

func (p *projectFile) hasFolder(dir string) bool {
	_, ok := p.folders()[paths.Key(dir)]
	return ok
}

// nestedUnder returns the file entry e is DependentUpon, or nil.
func (p *projectFile) nestedUnder(e entry) *entry {
	dep := e.elem.metadata("DependentUpon")
	if dep == "" {
		return nil
	}
	return p.file(paths.Normalize(filepath.Dir(e.path), dep))
}

// include returns the Include value for an absolute path.
func (p *projectFile) include(path string, dir bool) (string, error) {
	rel, err := paths.RelativeToDir(p.dir, path)
	if err != nil {
		return "", err
	}
	rel = strings.ReplaceAll(rel, "/", `\`)
	if dir {
		rel += `\`
	}
	return rel, nil
}

// addItem appends an item element to the first unconditioned ItemGroup
// holding items of the same type, creating the group if needed.
func (p *projectFile) addItem(itemType, include string) *element {
	e := newElement(itemType, "Include", include)
	group := p.groupFor(itemType)
	group.Children = append(group.Children, e)
	return e
}

func (p *projectFile) groupFor(itemType string) *element {
	root := p.doc.root
	last := -1
	for i, g := range root.Children {
		if g.name() != "ItemGroup" {
			continue
		}
		last = i
		if g.attr("Condition") != "" {
			continue
		}
		for _, c := range g.Children {
			if strings.EqualFold(c.name(), itemType) {
				return g
			}
		}
	}

	group := newElement("ItemGroup")
	if last < 0 {
		root.Children = append(root.Children, group)
		return group
	}
	root.Children = append(root.Children[:last+1], append([]*element{group}, root.Children[last+1:]...)...)
	return group
}

// remove deletes an item element, and its group once empty.
func (p *projectFile) remove(e entry) {
	e.group.removeChildren(func(c *element) bool { return c == e.elem })
	if len(e.group.Children) == 0 {
		p.doc.root.removeChildren(func(c *element) bool { return c == e.group })
	}
}

// propertyGroup returns the first unconditioned PropertyGroup, creating
// one when create is set.
func (p *projectFile) propertyGroup(create bool) *element {
	for _, g := range p.doc.root.Children {
		if g.name() == "PropertyGroup" && g.attr("Condition") == "" {
			return g
		}
	}
	if !create {
		return nil
	}
	g := newElement("PropertyGroup")
	p.doc.root.Children = append([]*element{g}, p.doc.root.Children...)
	return g
}

func (p *projectFile) references() []string {
	var refs []string
	for _, g := range p.doc.root.Children {
		if g.name() != "ItemGroup" {
			continue
		}
		for _, c := range g.Children {
			if strings.EqualFold(c.name(), "Reference") {
				refs = append(refs, c.attr("Include"))
			}
		}
	}
	return refs
}
