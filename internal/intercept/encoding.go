package intercept

import (
	"golang.org/x/sys/unix"

	"github.com/earshot-dev/earshot/internal/wire"
)

// Wire tokens, materialized once as NUL-terminated words so encodings can
// emit them as vector entries.
var (
	wordSeparator  = mustWord(wire.Separator)
	wordFileFlag   = mustWord(wire.FileFlag)
	wordSearchFlag = mustWord(wire.SearchPathFlag)
)

func mustWord(s string) *byte {
	p, err := unix.BytePtrFromString(s)
	if err != nil {
		panic("intercept: bad wire token: " + s)
	}
	return p
}

// plainWire encodes a bare argument vector: separator, entries,
// terminator. The execve and posix_spawn shapes use it; their executable
// path is not encoded.
type plainWire struct {
	argv []*byte
}

func (w plainWire) Estimate() int {
	return Length(w.argv) + 2
}

func (w plainWire) Copy(dst []*byte) []*byte {
	dst[0] = wordSeparator
	return CopyTerminated(dst[1:], w.argv)
}

// fileWire encodes a searched call: file flag, file, separator, entries,
// terminator. The execvp, execvpe, and posix_spawnp shapes use it.
type fileWire struct {
	file *byte
	argv []*byte
}

func (w fileWire) Estimate() int {
	return Length(w.argv) + 4
}

func (w fileWire) Copy(dst []*byte) []*byte {
	dst[0] = wordFileFlag
	dst[1] = w.file
	dst[2] = wordSeparator
	return CopyTerminated(dst[3:], w.argv)
}

// pathWire adds the explicit search path of the execvP shape: file flag,
// file, search-path flag, search path, separator, entries, terminator.
type pathWire struct {
	file       *byte
	searchPath *byte
	argv       []*byte
}

func (w pathWire) Estimate() int {
	return Length(w.argv) + 6
}

func (w pathWire) Copy(dst []*byte) []*byte {
	dst[0] = wordFileFlag
	dst[1] = w.file
	dst[2] = wordSearchFlag
	dst[3] = w.searchPath
	dst[4] = wordSeparator
	return CopyTerminated(dst[5:], w.argv)
}

// Compile-time interface checks
var (
	_ Serializable = plainWire{}
	_ Serializable = fileWire{}
	_ Serializable = pathWire{}
)
