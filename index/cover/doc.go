// Package cover provides a similarity index backed by a cover tree. It serves
// the euclidean and cosine metrics; inner product is not a metric distance
// and is rejected.
//
// Vectors inserted after a build go to a small pending buffer that is scanned
// exactly and merged into the tree once it fills. Removals are tombstoned in
// a roaring bitmap until the next rebuild.
package cover
