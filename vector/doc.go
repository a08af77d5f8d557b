// Package vector defines the dense vector type used across this module and
// its representations:
//   - Vector and the textual codec (Construct, Serialize, IsValid, Format)
//   - the opaque binary value stored in SQL columns (EncodeValue/DecodeValue)
//   - packed binary vectors for hamming search
//   - distance metrics and the error taxonomy shared by store and index
package vector
