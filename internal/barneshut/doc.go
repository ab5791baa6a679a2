// Package barneshut approximates the net gravitational pull on every body
// of a planar set in O(N log N).
//
// Build sorts the bodies along the Morton curve, then splits the sorted
// array into an implicit quadtree: each node covers a contiguous index
// range and its four quadrants are found by binary search on the key bit
// of that level. Centers of mass are aggregated bottom-up. A query walks
// the tree from the root and treats a node as one point mass when
//
//	halfWidth / dist < theta
//
// Leaves are always applied body by body. Tree nodes never own bodies;
// they index into the model's sorted slice.
package barneshut
