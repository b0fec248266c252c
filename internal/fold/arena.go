package fold

import (
	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Entry is one compiled node in an Arena. Parent is -1 for root nodes.
type Entry struct {
	ID        contentid.ID
	Parent    int
	Children  []int
	Depth     int
	Folded    bool
	Shell     Shell
	Keep      keep.Type
	InnerSize int
}

// Arena is a flat, pre-order view of a Forest with parent and child indices.
type Arena struct {
	Entries []Entry
	Roots   []int
}

// Stats summarizes an Arena.
type Stats struct {
	Nodes      int
	Folded     int
	Partial    int
	Keep       int
	KeepByType map[keep.Type]int
	InnerBytes int
	MaxDepth   int
}

// Flatten lays the forest out in pre-order.
func Flatten(f *Forest) *Arena {
	a := &Arena{}
	if f == nil {
		return a
	}
	for _, n := range f.Nodes {
		a.Roots = append(a.Roots, a.add(n, -1, 0))
	}
	return a
}

func (a *Arena) add(n Node, parent, depth int) int {
	idx := len(a.Entries)
	e := Entry{ID: n.NodeID(), Parent: parent, Depth: depth}
	switch v := n.(type) {
	case *Folded:
		e.Folded = true
		e.Shell = v.Shell
		e.InnerSize = len(v.Inner)
		a.Entries = append(a.Entries, e)
	case *Partial:
		e.Shell = v.Shell
		if v.Keep != nil {
			e.Keep = v.Keep.Type()
		}
		a.Entries = append(a.Entries, e)
		kids := make([]int, 0, len(v.Children))
		for _, c := range v.Children {
			kids = append(kids, a.add(c, idx, depth+1))
		}
		a.Entries[idx].Children = kids
	}
	return idx
}

// Stats counts node kinds in the arena.
func (a *Arena) Stats() Stats {
	s := Stats{KeepByType: map[keep.Type]int{}}
	for _, e := range a.Entries {
		s.Nodes++
		if e.Folded {
			s.Folded++
			s.InnerBytes += e.InnerSize
		} else {
			s.Partial++
		}
		if e.Keep != "" {
			s.Keep++
			s.KeepByType[e.Keep]++
		}
		if e.Depth > s.MaxDepth {
			s.MaxDepth = e.Depth
		}
	}
	return s
}

// Path returns the indices from the root down to idx.
func (a *Arena) Path(idx int) []int {
	var path []int
	for i := idx; i >= 0; i = a.Entries[i].Parent {
		path = append([]int{i}, path...)
	}
	return path
}
