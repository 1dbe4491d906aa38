package cluster

import "fmt"

// Line links each node to the one before and after it.
func Line(ids []string) map[string][]string {
	topo := make(map[string][]string, len(ids))
	for i, id := range ids {
		adj := []string{}
		if i > 0 {
			adj = append(adj, ids[i-1])
		}
		if i < len(ids)-1 {
			adj = append(adj, ids[i+1])
		}
		topo[id] = adj
	}
	return topo
}

// Full links every node to every other node.
func Full(ids []string) map[string][]string {
	topo := make(map[string][]string, len(ids))
	for _, id := range ids {
		adj := make([]string, 0, len(ids)-1)
		for _, other := range ids {
			if other != id {
				adj = append(adj, other)
			}
		}
		topo[id] = adj
	}
	return topo
}

// Grid lays ids out row by row, width per row, and links horizontal and
// vertical neighbors. The last row may be short.
func Grid(ids []string, width int) map[string][]string {
	if width < 1 {
		width = 1
	}
	topo := make(map[string][]string, len(ids))
	for i, id := range ids {
		adj := []string{}
		if i%width > 0 {
			adj = append(adj, ids[i-1])
		}
		if i%width < width-1 && i+1 < len(ids) {
			adj = append(adj, ids[i+1])
		}
		if i-width >= 0 {
			adj = append(adj, ids[i-width])
		}
		if i+width < len(ids) {
			adj = append(adj, ids[i+width])
		}
		topo[id] = adj
	}
	return topo
}

// BuildTopology returns the named layout over ids: line, full or grid.
// A grid is as close to square as the node count allows.
func BuildTopology(name string, ids []string) (map[string][]string, error) {
	switch name {
	case "line":
		return Line(ids), nil
	case "full":
		return Full(ids), nil
	case "grid":
		w := 1
		for w*w < len(ids) {
			w++
		}
		return Grid(ids, w), nil
	default:
		return nil, fmt.Errorf("unknown topology %q (want line, full or grid)", name)
	}
}
