package project

import (
	"github.com/simonhull/quill/paths"
)

// Snapshot is a read-only index of the project tree taken at the start of a
// pass, before any mutation. Decisions that compare desired and current
// state read the snapshot so a pass never observes its own changes halfway
// through.
type Snapshot struct {
	projects []Item
	byPath   map[string]Item
	projByID map[string]Item
}

// TakeSnapshot indexes every project and item reachable through the gateway.
func TakeSnapshot(g *Gateway) (*Snapshot, error) {
	projects, err := g.Projects()
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		projects: projects,
		byPath:   make(map[string]Item),
		projByID: make(map[string]Item, len(projects)),
	}
	for _, p := range projects {
		s.projByID[paths.Key(p.Path())] = p
		for _, child := range p.Children() {
			Walk(child, func(item Item) {
				key := paths.Key(item.Path())
				if _, seen := s.byPath[key]; !seen {
					s.byPath[key] = item
				}
			})
		}
	}
	return s, nil
}

// Projects returns all projects in solution order.
func (s *Snapshot) Projects() []Item {
	return s.projects
}

// Project returns the project whose file is at path, or nil.
func (s *Snapshot) Project(path string) Item {
	return s.projByID[paths.Key(path)]
}

// Item returns the file or folder item at path, or nil.
func (s *Snapshot) Item(path string) Item {
	return s.byPath[paths.Key(path)]
}

// Len returns the number of indexed items, projects excluded.
func (s *Snapshot) Len() int {
	return len(s.byPath)
}
