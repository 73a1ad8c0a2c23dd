// Package intercept implements the exec interception core: call-shape
// variants for the six POSIX process-start entry points, a lazy resolver
// of their real implementations, and the rerouting machinery that turns an
// intercepted call into a relay invocation carrying the original argument
// vector.
//
// # Vectors
//
// Arguments and environments travel as POSIX pointer vectors: a []*byte
// whose entries point at NUL-terminated strings, closed by a single nil
// terminator. This is the exact shape syscall.SlicePtrFromStrings
// produces, so vectors cross into real system calls without another
// conversion, and a pass-through call hands the kernel the very pointers
// it was given.
//
// # Rerouting
//
// With a tracing session present, an intercepted call does not run the
// original command. Its vector is re-encoded as
//
//	relay --destination SOCK [flags] -- original argv...
//
// and a single real call starts the relay instead, which reports the
// command and then chains to the original executable. The encoding is
// bounded: every piece declares an upper estimate, the merged vector is
// allocated at exactly the summed estimates, and the copies are
// contiguous by construction.
//
// # Usage
//
//	lib := intercept.NewLibrary(intercept.DefaultResolver(), session)
//	err := lib.Execvp(file, argv)
//	// reached only on failure; errno-typed error, ENOSYS when the real
//	// implementation could not be resolved
package intercept
