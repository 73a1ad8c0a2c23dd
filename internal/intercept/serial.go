package intercept

// Serializable encodes a value into a caller-provided pointer vector.
//
// Estimate returns an upper bound on the number of slots Copy writes,
// terminators included. It is cheap and has no side effects, so callers
// may size buffers from it and nothing more.
//
// Copy writes the encoding into dst and returns the unwritten tail of
// dst, positioned past the last written slot. Copy writes at most
// Estimate slots and never writes past dst; a destination smaller than
// the encoding is a contract violation and panics.
type Serializable interface {
	Estimate() int
	Copy(dst []*byte) []*byte
}
