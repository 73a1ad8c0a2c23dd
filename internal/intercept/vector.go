package intercept

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Length returns the number of entries before a vector's nil terminator.
// Memory past the terminator does not participate; a slice without a
// terminator yields len(v).
func Length(v []*byte) int {
	n := 0
	for n < len(v) && v[n] != nil {
		n++
	}
	return n
}

// CopyTerminated copies the entries of src into dst, writes a nil
// terminator after them, and returns the unwritten tail of dst positioned
// past the terminator. Entries stop at src's own terminator when it has
// one.
//
// dst must have room for the entries plus the terminator. Destinations
// are sized from Estimate figures, so falling short is a programming
// error: CopyTerminated panics instead of truncating or writing out of
// bounds.
func CopyTerminated(dst, src []*byte) []*byte {
	n := Length(src)
	if len(dst) < n+1 {
		panic("intercept: destination vector too small")
	}
	copy(dst, src[:n])
	dst[n] = nil
	return dst[n+1:]
}

// NewVector builds a terminated pointer vector from Go strings. Strings
// with embedded NUL bytes are rejected.
func NewVector(args []string) ([]*byte, error) {
	return syscall.SlicePtrFromStrings(args)
}

// Strings converts a terminated pointer vector back into Go strings.
func Strings(v []*byte) []string {
	n := Length(v)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = unix.BytePtrToString(v[i])
	}
	return out
}
