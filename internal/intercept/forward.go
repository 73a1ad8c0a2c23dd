package intercept

// forward merges the session and execution encodings into one contiguous
// vector and hands it to call.
//
// The vector is sized to exactly the two estimates combined. The session
// encoding lands first, the execution encoding immediately after it, with
// no gap: the second Copy starts on the cursor the first one returned.
// The first element doubles as the executable path, so the merged vector
// serves as both path and argv for the rerouted call.
func forward(session, execution Serializable, call func(path *byte, vec []*byte) error) error {
	size := session.Estimate() + execution.Estimate()
	vec := make([]*byte, size)
	rest := session.Copy(vec)
	execution.Copy(rest)
	return call(vec[0], vec)
}

// forwardExec reroutes an exec-family call through the relay. The merged
// vector becomes the relay's argv, the original environment rides along
// unchanged, and the call always goes through execve: the relay path in
// slot zero is absolute, so no search is involved.
func forwardExec(r Resolver, session, execution Serializable, envp []*byte) Result[int] {
	return Map(r.Execve(), func(fn ExecFunc) Result[int] {
		return outcome(forward(session, execution, func(path *byte, vec []*byte) error {
			return fn(path, vec, envp)
		}))
	})
}

// forwardSpawn is the spawn-family counterpart. The caller's pid
// out-parameter, file actions, and attributes pass through untouched, and
// the call always goes through posix_spawn for the same reason forwardExec
// uses execve.
func forwardSpawn(r Resolver, session, execution Serializable, pid *int, fileActions *FileActions, attr *SpawnAttr, envp []*byte) Result[int] {
	return Map(r.Spawn(), func(fn SpawnFunc) Result[int] {
		return outcome(forward(session, execution, func(path *byte, vec []*byte) error {
			return fn(pid, path, fileActions, attr, vec, envp)
		}))
	})
}

// outcome folds a real call's error into a Result: nil becomes Value(0),
// anything else passes through as the failure, untranslated.
func outcome(err error) Result[int] {
	if err != nil {
		return Fail[int](err)
	}
	return Value(0)
}
