// Package morton maps planar positions onto a shared 32-bit integer grid
// and orders them along a Z-order (Morton) curve.
//
// Both axes are quantized against one square bounding box so that
// proximity on the grid matches proximity in space. Keys interleave the
// two quantized coordinates from the most significant bit down, with the
// Y bit ahead of the X bit at every level:
//
//	key bit 2i+1 = y bit i
//	key bit 2i   = x bit i
//
// At any bit level the two key bits read together give the quadrant index
// (x contributes 1, y contributes 2), which is what the quadtree builder
// binary-searches on.
package morton
