package barneshut

import "github.com/san-kum/gravtree/internal/morton"

// Cell is the grid square a node covers. Depth 0 is the whole bounding
// square of the last build.
type Cell struct {
	X0, Y0 float64
	Side   float64
	Depth  int
	// Quadrant is the cell's position inside its parent, 0-3 with x the
	// low bit; -1 for the root.
	Quadrant int
	Bodies   int
}

// Cells lists the squares of every node down to maxDepth in pre-order.
// A one-body tree has no extent and yields nil.
func (m *Model) Cells(maxDepth int) []Cell {
	if m.root == nil || m.mapper == nil {
		return nil
	}
	var cells []Cell
	m.Walk(func(n *Node, depth int) bool {
		if depth > maxDepth {
			return false
		}
		p := m.bodies[n.Lo]
		x0, y0, side := CellOf(m.mapper, p, depth)
		cells = append(cells, Cell{
			X0:       x0,
			Y0:       y0,
			Side:     side,
			Depth:    depth,
			Quadrant: quadrantOf(m.mapper, p, depth),
			Bodies:   n.Len(),
		})
		return depth < maxDepth
	})
	return cells
}

// CellOf returns the lower-left corner and side of the square at depth
// that contains p.
func CellOf(mapper *morton.Mapper, p morton.Point, depth int) (x0, y0, side float64) {
	side = mapper.CellWidth(depth + 1)
	shift := uint(32 - depth)
	qx, qy := morton.Deinterleave(mapper.Key(p.X(), p.Y()))
	ix, iy := uint64(qx)>>shift, uint64(qy)>>shift
	return mapper.XMin + float64(ix)*side, mapper.YMin + float64(iy)*side, side
}

func quadrantOf(mapper *morton.Mapper, p morton.Point, depth int) int {
	if depth == 0 {
		return -1
	}
	qx, qy := morton.Deinterleave(mapper.Key(p.X(), p.Y()))
	return morton.Quadrant(qx, qy, 1<<uint(32-depth))
}
