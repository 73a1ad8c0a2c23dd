package intercept

// Execution is one intercepted call, capturing the original arguments by
// reference. Apply passes the call straight to its real implementation.
// ApplyTraced reroutes it through the supervisor's relay, with the session
// encoding ahead of the original vector.
type Execution interface {
	Apply(r Resolver) Result[int]
	ApplyTraced(r Resolver, session Serializable) Result[int]
}

// Run dispatches e: without a session the call goes straight through,
// with one it is rerouted. This is the only place that decision lives.
func Run(e Execution, r Resolver, session Serializable) Result[int] {
	if session == nil {
		return e.Apply(r)
	}
	return e.ApplyTraced(r, session)
}

// Execve is the exec shape with an explicit path and environment.
type Execve struct {
	Path *byte
	Argv []*byte
	Envp []*byte
}

func (e *Execve) Apply(r Resolver) Result[int] {
	return Map(r.Execve(), func(fn ExecFunc) Result[int] {
		return outcome(fn(e.Path, e.Argv, e.Envp))
	})
}

// ApplyTraced encodes only the argument vector; the path is dropped on
// purpose. Downstream, argv[0] stands in for it.
func (e *Execve) ApplyTraced(r Resolver, session Serializable) Result[int] {
	return forwardExec(r, session, plainWire{argv: e.Argv}, e.Envp)
}

// Execvp is the exec shape resolving its file against the caller's PATH
// environment. Envp is carried for rerouting; the direct call inherits
// the environment implicitly, as the real function does.
type Execvp struct {
	File *byte
	Argv []*byte
	Envp []*byte
}

func (e *Execvp) Apply(r Resolver) Result[int] {
	return Map(r.Execvp(), func(fn SearchExecFunc) Result[int] {
		return outcome(fn(e.File, e.Argv))
	})
}

func (e *Execvp) ApplyTraced(r Resolver, session Serializable) Result[int] {
	return forwardExec(r, session, fileWire{file: e.File, argv: e.Argv}, e.Envp)
}

// Execvpe is the exec shape resolving its file against PATH with an
// explicit environment.
type Execvpe struct {
	File *byte
	Argv []*byte
	Envp []*byte
}

func (e *Execvpe) Apply(r Resolver) Result[int] {
	return Map(r.Execvpe(), func(fn ExecFunc) Result[int] {
		return outcome(fn(e.File, e.Argv, e.Envp))
	})
}

func (e *Execvpe) ApplyTraced(r Resolver, session Serializable) Result[int] {
	return forwardExec(r, session, fileWire{file: e.File, argv: e.Argv}, e.Envp)
}

// ExecvP is the BSD exec shape taking an explicit search path instead of
// consulting the environment. Envp is carried for rerouting only.
type ExecvP struct {
	File       *byte
	SearchPath *byte
	Argv       []*byte
	Envp       []*byte
}

func (e *ExecvP) Apply(r Resolver) Result[int] {
	return Map(r.ExecvP(), func(fn PathExecFunc) Result[int] {
		return outcome(fn(e.File, e.SearchPath, e.Argv))
	})
}

func (e *ExecvP) ApplyTraced(r Resolver, session Serializable) Result[int] {
	return forwardExec(r, session, pathWire{file: e.File, searchPath: e.SearchPath, argv: e.Argv}, e.Envp)
}

// Spawn is the posix_spawn shape. PID receives the child's pid on
// success; FileActions and Attr pass through to the platform
// implementation untouched.
type Spawn struct {
	PID         *int
	Path        *byte
	FileActions *FileActions
	Attr        *SpawnAttr
	Argv        []*byte
	Envp        []*byte
}

func (s *Spawn) Apply(r Resolver) Result[int] {
	return Map(r.Spawn(), func(fn SpawnFunc) Result[int] {
		return outcome(fn(s.PID, s.Path, s.FileActions, s.Attr, s.Argv, s.Envp))
	})
}

func (s *Spawn) ApplyTraced(r Resolver, session Serializable) Result[int] {
	return forwardSpawn(r, session, plainWire{argv: s.Argv}, s.PID, s.FileActions, s.Attr, s.Envp)
}

// Spawnp is the posix_spawnp shape: the file is resolved against PATH.
// Rerouted calls go through posix_spawn instead, since the relay path in
// slot zero is absolute and searching for it would be wrong.
type Spawnp struct {
	PID         *int
	File        *byte
	FileActions *FileActions
	Attr        *SpawnAttr
	Argv        []*byte
	Envp        []*byte
}

func (s *Spawnp) Apply(r Resolver) Result[int] {
	return Map(r.Spawnp(), func(fn SpawnFunc) Result[int] {
		return outcome(fn(s.PID, s.File, s.FileActions, s.Attr, s.Argv, s.Envp))
	})
}

func (s *Spawnp) ApplyTraced(r Resolver, session Serializable) Result[int] {
	return forwardSpawn(r, session, fileWire{file: s.File, argv: s.Argv}, s.PID, s.FileActions, s.Attr, s.Envp)
}

// Compile-time interface checks
var (
	_ Execution = (*Execve)(nil)
	_ Execution = (*Execvp)(nil)
	_ Execution = (*Execvpe)(nil)
	_ Execution = (*ExecvP)(nil)
	_ Execution = (*Spawn)(nil)
	_ Execution = (*Spawnp)(nil)
)
