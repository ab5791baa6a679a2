package barneshut

import (
	"math"

	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/morton"
)

// Source is anything that exerts gravity: a body or a node aggregate.
type Source = body.Source

// Body is what the model sorts and queries. Implementations must be
// comparable (pointer types in practice); the target is recognised by
// identity when a traversal reaches it as a leaf.
type Body interface {
	morton.Point
	M() float64
	AccGravityFrom(src Source)
}

type SlotKind uint8

const (
	SlotEmpty SlotKind = iota
	SlotBody
	SlotNode
	SlotBucket
)

func (k SlotKind) String() string {
	switch k {
	case SlotEmpty:
		return "empty"
	case SlotBody:
		return "body"
	case SlotNode:
		return "node"
	case SlotBucket:
		return "bucket"
	default:
		return "unknown"
	}
}

// Slot is one quadrant of a node. Body and bucket slots cover [Lo, Hi)
// of the sorted array; a bucket holds bodies whose keys are identical.
type Slot struct {
	Kind   SlotKind
	Lo, Hi int
	Node   *Node
}

// Node is an aggregate over the sorted range [Lo, Hi).
type Node struct {
	HalfWidth float64
	Lo, Hi    int
	Slots     [4]Slot

	cx, cy, mass float64
	bodies       []Body
}

func (n *Node) X() float64 { return n.cx }
func (n *Node) Y() float64 { return n.cy }
func (n *Node) M() float64 { return n.mass }

// Len is the number of bodies under n.
func (n *Node) Len() int { return n.Hi - n.Lo }

// Interactions counts gravity contributions applied to one or more targets.
type Interactions struct {
	Direct int
	Approx int
}

func (in Interactions) Total() int { return in.Direct + in.Approx }

func (in *Interactions) Add(o Interactions) {
	in.Direct += o.Direct
	in.Approx += o.Approx
}

// aggregate sets mass and centroid from the filled slots.
func (n *Node) aggregate() {
	var x, y, m float64
	for i := range n.Slots {
		s := &n.Slots[i]
		switch s.Kind {
		case SlotNode:
			x += s.Node.cx * s.Node.mass
			y += s.Node.cy * s.Node.mass
			m += s.Node.mass
		case SlotBody, SlotBucket:
			for _, b := range n.bodies[s.Lo:s.Hi] {
				bm := b.M()
				x += b.X() * bm
				y += b.Y() * bm
				m += bm
			}
		}
	}
	n.cx, n.cy, n.mass = x/m, y/m, m
}

// Accumulate applies the pull of everything under n to target.
// A zero distance to the centroid never passes the opening test.
func (n *Node) Accumulate(target Body, theta float64) Interactions {
	var in Interactions
	n.accumulate(target, theta, &in)
	return in
}

func (n *Node) accumulate(target Body, theta float64, in *Interactions) {
	dx := target.X() - n.cx
	dy := target.Y() - n.cy
	dist := math.Sqrt(dx*dx + dy*dy)

	if n.HalfWidth/dist < theta {
		target.AccGravityFrom(n)
		in.Approx++
		return
	}

	for i := range n.Slots {
		s := &n.Slots[i]
		switch s.Kind {
		case SlotNode:
			s.Node.accumulate(target, theta, in)
		case SlotBody, SlotBucket:
			for _, b := range n.bodies[s.Lo:s.Hi] {
				if b == target {
					continue
				}
				target.AccGravityFrom(b)
				in.Direct++
			}
		}
	}
}

// walk visits n and its nested nodes in pre-order. When fn returns false
// the children of that node are skipped; its siblings are still visited.
func (n *Node) walk(depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for i := range n.Slots {
		if s := &n.Slots[i]; s.Kind == SlotNode {
			s.Node.walk(depth+1, fn)
		}
	}
}
