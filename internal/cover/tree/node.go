package tree

import "math"

// Node is a cover-tree node at a level. Its children were within
// base^level of point when inserted; radius caches the actual subtree bound
// and is recomputed when radiusComputed falls behind the tree version.
type Node struct {
	level          int32
	baseLevel      float32
	point          *Point
	children       []Node
	radius         float32
	radiusComputed uint64
}

func newNode(point *Point, level int32, base float32) Node {
	return Node{level: level, baseLevel: float32(math.Pow(float64(base), float64(level))), point: point}
}
