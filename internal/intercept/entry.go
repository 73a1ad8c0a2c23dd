package intercept

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// Library binds the six intercepted entry points to a resolver and an
// optional tracing session. It is the Go rendition of the symbol surface
// a preloaded interposer would export: construct one at startup and let
// every entry point share its resolver.
type Library struct {
	resolver Resolver
	session  Serializable
}

// NewLibrary returns a Library. A nil session disables rerouting: every
// entry point degrades to a plain pass-through of the real call.
func NewLibrary(r Resolver, session Serializable) *Library {
	return &Library{resolver: r, session: session}
}

// Execve runs the program at path, replacing the calling process on
// success. Like its namesake it returns only on failure.
func (l *Library) Execve(path *byte, argv, envp []*byte) error {
	call := Execve{Path: path, Argv: argv, Envp: envp}
	return finish(Run(&call, l.resolver, l.session))
}

// Execvp resolves file against the PATH environment and runs it.
func (l *Library) Execvp(file *byte, argv []*byte) error {
	call := Execvp{File: file, Argv: argv, Envp: environVector()}
	return finish(Run(&call, l.resolver, l.session))
}

// Execvpe resolves file against PATH and runs it with envp as the new
// environment.
func (l *Library) Execvpe(file *byte, argv, envp []*byte) error {
	call := Execvpe{File: file, Argv: argv, Envp: envp}
	return finish(Run(&call, l.resolver, l.session))
}

// ExecvP resolves file against searchPath, not the environment, and runs
// it.
func (l *Library) ExecvP(file, searchPath *byte, argv []*byte) error {
	call := ExecvP{File: file, SearchPath: searchPath, Argv: argv, Envp: environVector()}
	return finish(Run(&call, l.resolver, l.session))
}

// PosixSpawn starts the program at path as a child process, writing its
// pid through pid on success.
func (l *Library) PosixSpawn(pid *int, path *byte, fileActions *FileActions, attr *SpawnAttr, argv, envp []*byte) error {
	call := Spawn{PID: pid, Path: path, FileActions: fileActions, Attr: attr, Argv: argv, Envp: envp}
	return finish(Run(&call, l.resolver, l.session))
}

// PosixSpawnp is PosixSpawn with PATH resolution of file.
func (l *Library) PosixSpawnp(pid *int, file *byte, fileActions *FileActions, attr *SpawnAttr, argv, envp []*byte) error {
	call := Spawnp{PID: pid, File: file, FileActions: fileActions, Attr: attr, Argv: argv, Envp: envp}
	return finish(Run(&call, l.resolver, l.session))
}

// finish folds a Result into the POSIX error contract: resolution
// failures surface as ENOSYS, real-call failures pass through
// untranslated, success is nil.
func finish(r Result[int]) error {
	err := r.Err()
	if err == nil {
		return nil
	}
	var unresolved *UnresolvedError
	if errors.As(err, &unresolved) {
		return unix.ENOSYS
	}
	return err
}

// environVector snapshots the process environment as a terminated vector.
func environVector() []*byte {
	v, err := syscall.SlicePtrFromStrings(syscall.Environ())
	if err != nil {
		// Environment strings cannot carry NUL bytes, so this does not
		// happen; an empty terminated vector keeps callers safe anyway.
		return []*byte{nil}
	}
	return v
}
