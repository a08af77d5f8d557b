// Package engine exposes MyVector to SQL through the modernc.org/sqlite
// driver: it opens connections and registers the myvector_* scalar
// functions (construct, is_valid, distance, display, dim, ann_set,
// hamming_distance and the index maintenance hooks).
//
// Scalar functions are registered with the driver, not with a database
// handle, so the collection registry they consult is process wide and set
// with Bind.
package engine
