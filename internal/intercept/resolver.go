package intercept

import (
	"fmt"
	"sync"
	"syscall"
)

// Function shapes of the intercepted entry points. Executers replace the
// process image and return only on failure; spawners return nil after
// writing the child pid through their out-parameter.
type (
	// ExecFunc is the execve/execvpe shape: an explicit path or file plus
	// an explicit environment.
	ExecFunc func(path *byte, argv, envp []*byte) error

	// SearchExecFunc is the execvp shape: the file is resolved against the
	// caller's PATH environment.
	SearchExecFunc func(file *byte, argv []*byte) error

	// PathExecFunc is the execvP shape: the file is resolved against an
	// explicit search path.
	PathExecFunc func(file, searchPath *byte, argv []*byte) error

	// SpawnFunc is the posix_spawn/posix_spawnp shape.
	SpawnFunc func(pid *int, path *byte, fileActions *FileActions, attr *SpawnAttr, argv, envp []*byte) error
)

// FileActions describes the descriptor rewiring a spawned child performs
// before its image starts: Files[i] becomes descriptor i in the child.
type FileActions struct {
	Files []uintptr
}

// SpawnAttr carries spawn attributes through to the platform
// implementation.
type SpawnAttr struct {
	// Dir is the child's working directory, empty to inherit the parent's.
	Dir string
	// Sys holds kernel-level process attributes.
	Sys *syscall.SysProcAttr
}

// Table binds each intercepted entry point to its real implementation. A
// nil field means the symbol is unavailable.
type Table struct {
	Execve  ExecFunc
	Execvp  SearchExecFunc
	Execvpe ExecFunc
	ExecvP  PathExecFunc
	Spawn   SpawnFunc
	Spawnp  SpawnFunc
}

// UnresolvedError reports an entry point whose real implementation could
// not be found.
type UnresolvedError struct {
	Symbol string
	Err    error // loader failure, nil when the symbol is simply absent
}

func (e *UnresolvedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolving %s: %v", e.Symbol, e.Err)
	}
	return fmt.Sprintf("resolving %s: symbol not available", e.Symbol)
}

func (e *UnresolvedError) Unwrap() error {
	return e.Err
}

// Resolver looks up the real implementation behind each intercepted entry
// point.
type Resolver interface {
	Execve() Result[ExecFunc]
	Execvp() Result[SearchExecFunc]
	Execvpe() Result[ExecFunc]
	ExecvP() Result[PathExecFunc]
	Spawn() Result[SpawnFunc]
	Spawnp() Result[SpawnFunc]
}

// TableResolver resolves lazily from a loaded Table. The load function
// runs at most once, on the first lookup, no matter how many goroutines
// resolve concurrently; its outcome is memoized for the life of the
// resolver.
type TableResolver struct {
	load  func() (*Table, error)
	once  sync.Once
	table *Table
	err   error
}

// NewResolver returns a TableResolver backed by load.
func NewResolver(load func() (*Table, error)) *TableResolver {
	return &TableResolver{load: load}
}

// DefaultResolver resolves against the running platform.
func DefaultResolver() *TableResolver {
	return NewResolver(loadPlatformTable)
}

func (r *TableResolver) resolve() (*Table, error) {
	r.once.Do(func() {
		r.table, r.err = r.load()
		if r.table == nil && r.err == nil {
			r.err = fmt.Errorf("loader returned no table")
		}
	})
	return r.table, r.err
}

func (r *TableResolver) Execve() Result[ExecFunc] {
	t, err := r.resolve()
	if err != nil {
		return Fail[ExecFunc](&UnresolvedError{Symbol: "execve", Err: err})
	}
	if t.Execve == nil {
		return Fail[ExecFunc](&UnresolvedError{Symbol: "execve"})
	}
	return Value(t.Execve)
}

func (r *TableResolver) Execvp() Result[SearchExecFunc] {
	t, err := r.resolve()
	if err != nil {
		return Fail[SearchExecFunc](&UnresolvedError{Symbol: "execvp", Err: err})
	}
	if t.Execvp == nil {
		return Fail[SearchExecFunc](&UnresolvedError{Symbol: "execvp"})
	}
	return Value(t.Execvp)
}

func (r *TableResolver) Execvpe() Result[ExecFunc] {
	t, err := r.resolve()
	if err != nil {
		return Fail[ExecFunc](&UnresolvedError{Symbol: "execvpe", Err: err})
	}
	if t.Execvpe == nil {
		return Fail[ExecFunc](&UnresolvedError{Symbol: "execvpe"})
	}
	return Value(t.Execvpe)
}

func (r *TableResolver) ExecvP() Result[PathExecFunc] {
	t, err := r.resolve()
	if err != nil {
		return Fail[PathExecFunc](&UnresolvedError{Symbol: "execvP", Err: err})
	}
	if t.ExecvP == nil {
		return Fail[PathExecFunc](&UnresolvedError{Symbol: "execvP"})
	}
	return Value(t.ExecvP)
}

func (r *TableResolver) Spawn() Result[SpawnFunc] {
	t, err := r.resolve()
	if err != nil {
		return Fail[SpawnFunc](&UnresolvedError{Symbol: "posix_spawn", Err: err})
	}
	if t.Spawn == nil {
		return Fail[SpawnFunc](&UnresolvedError{Symbol: "posix_spawn"})
	}
	return Value(t.Spawn)
}

func (r *TableResolver) Spawnp() Result[SpawnFunc] {
	t, err := r.resolve()
	if err != nil {
		return Fail[SpawnFunc](&UnresolvedError{Symbol: "posix_spawnp", Err: err})
	}
	if t.Spawnp == nil {
		return Fail[SpawnFunc](&UnresolvedError{Symbol: "posix_spawnp"})
	}
	return Value(t.Spawnp)
}

// Compile-time interface check
var _ Resolver = (*TableResolver)(nil)
