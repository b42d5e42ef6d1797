// Package tree walks an owner's location forest in memory.
//
// Every walk keeps a visited set and stops on a revisit, so corrupted parent
// links written out of band cannot make it loop.
package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erazemk/shramba/internal/model"
)

// Ellipsis replaces the collapsed middle of a compacted path.
const Ellipsis = "..."

// Separator joins path segments for display.
const Separator = " / "

// Node is the part of a location the walks need.
type Node struct {
	ID       string
	ParentID string // empty for roots
	Name     string
}

// Forest indexes nodes by id and by parent.
type Forest struct {
	nodes    map[string]Node
	children map[string][]string
}

// New builds a forest from a flat node list.
func New(nodes []Node) *Forest {
	f := &Forest{
		nodes:    make(map[string]Node, len(nodes)),
		children: make(map[string][]string),
	}
	for _, n := range nodes {
		f.nodes[n.ID] = n
		if n.ParentID != "" {
			f.children[n.ParentID] = append(f.children[n.ParentID], n.ID)
		}
	}
	for _, ids := range f.children {
		sort.Strings(ids)
	}
	return f
}

// FromLocations builds a forest from stored locations.
func FromLocations(locs []model.Location) *Forest {
	nodes := make([]Node, 0, len(locs))
	for _, l := range locs {
		n := Node{ID: l.ID, Name: l.Name}
		if l.ParentID != nil {
			n.ParentID = *l.ParentID
		}
		nodes = append(nodes, n)
	}
	return New(nodes)
}

// Has reports whether id is in the forest.
func (f *Forest) Has(id string) bool {
	_, ok := f.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Children returns the direct children of id.
func (f *Forest) Children(id string) []string {
	return f.children[id]
}

// Descendants collects every node below id by repeated child expansion.
// id itself is not included.
func (f *Forest) Descendants(id string) map[string]struct{} {
	out := make(map[string]struct{})
	frontier := append([]string{}, f.children[id]...)
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		if next == id {
			continue
		}
		if _, seen := out[next]; seen {
			continue
		}
		out[next] = struct{}{}
		frontier = append(frontier, f.children[next]...)
	}
	return out
}

// IsDescendant reports whether candidate lies below id.
func (f *Forest) IsDescendant(id, candidate string) bool {
	_, ok := f.Descendants(id)[candidate]
	return ok
}

// Path returns the names from the root down to id. The walk stops at the
// first revisited node, so a corrupted chain yields a truncated path instead
// of looping. Unknown ids yield nil.
func (f *Forest) Path(id string) []string {
	chain := f.chain(id)
	names := make([]string, len(chain))
	for i, n := range chain {
		names[len(chain)-1-i] = n.Name
	}
	return names
}

// Depth returns the number of ancestors of id (zero for a root).
func (f *Forest) Depth(id string) int {
	return len(f.chain(id)) - 1
}

// chain walks parent links from id upward, leaf first.
func (f *Forest) chain(id string) []Node {
	var chain []Node
	visited := make(map[string]bool)
	for cur := id; cur != ""; {
		if visited[cur] {
			break
		}
		visited[cur] = true
		n, ok := f.nodes[cur]
		if !ok {
			break
		}
		chain = append(chain, n)
		cur = n.ParentID
	}
	return chain
}

// Check verifies the forest invariant: every node reaches a root without
// revisiting a node and every parent link resolves.
func (f *Forest) Check() error {
	ids := make([]string, 0, len(f.nodes))
	for id := range f.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		visited := make(map[string]bool)
		for cur := id; cur != ""; {
			if visited[cur] {
				return fmt.Errorf("%w: location %s loops back through %s", model.ErrCycleDetected, id, cur)
			}
			visited[cur] = true
			n, ok := f.nodes[cur]
			if !ok {
				return fmt.Errorf("%w: parent %s of a location in the chain of %s", model.ErrNotFound, cur, id)
			}
			cur = n.ParentID
		}
	}
	return nil
}

// CompactSegments shortens a path for display. When the path has more than
// maxSegments segments it becomes first, Ellipsis, last. maxSegments <= 0
// disables truncation.
func CompactSegments(path []string, maxSegments int) []string {
	if maxSegments <= 0 || len(path) <= maxSegments || len(path) < 3 {
		return append([]string{}, path...)
	}
	return []string{path[0], Ellipsis, path[len(path)-1]}
}

// Compact is CompactSegments joined with Separator.
func Compact(path []string, maxSegments int) string {
	return strings.Join(CompactSegments(path, maxSegments), Separator)
}
