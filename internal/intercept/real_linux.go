//go:build linux

package intercept

import (
	"os"
	"os/exec"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// defaultSearchPath stands in when neither the caller nor the environment
// supplies PATH, matching the usual libc fallback.
const defaultSearchPath = "/usr/local/bin:/bin:/usr/bin"

func loadPlatformTable() (*Table, error) {
	return &Table{
		Execve:  sysExecve,
		Execvp:  sysExecvp,
		Execvpe: sysExecvpe,
		ExecvP:  sysExecvP,
		Spawn:   sysSpawn,
		Spawnp:  sysSpawnp,
	}, nil
}

// sysExecve invokes the execve system call directly on the prepared
// vectors. It returns only on failure, with the kernel's errno.
func sysExecve(path *byte, argv, envp []*byte) error {
	if path == nil || len(argv) == 0 || len(envp) == 0 {
		return unix.EFAULT
	}
	_, _, errno := syscall.RawSyscall(unix.SYS_EXECVE,
		uintptr(unsafe.Pointer(path)),
		uintptr(unsafe.Pointer(&argv[0])),
		uintptr(unsafe.Pointer(&envp[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

func sysExecvp(file *byte, argv []*byte) error {
	return searchExec(unix.BytePtrToString(file), os.Getenv("PATH"), argv, environVector())
}

func sysExecvpe(file *byte, argv, envp []*byte) error {
	// The search consults the caller's PATH, not the new environment,
	// which only takes effect once the image is running.
	return searchExec(unix.BytePtrToString(file), os.Getenv("PATH"), argv, envp)
}

func sysExecvP(file, searchPath *byte, argv []*byte) error {
	return searchExec(unix.BytePtrToString(file), unix.BytePtrToString(searchPath), argv, environVector())
}

// searchExec emulates the libc search loop: try each directory in order,
// remember a permission failure, and report the most meaningful errno when
// nothing ran. Files containing a slash skip the search entirely.
func searchExec(file, searchPath string, argv, envp []*byte) error {
	if file == "" {
		return unix.ENOENT
	}
	if strings.ContainsRune(file, '/') {
		p, err := unix.BytePtrFromString(file)
		if err != nil {
			return unix.EINVAL
		}
		return sysExecve(p, argv, envp)
	}
	if searchPath == "" {
		searchPath = defaultSearchPath
	}
	seenAccess := false
	for _, dir := range strings.Split(searchPath, ":") {
		if dir == "" {
			dir = "." // an empty PATH entry means the current directory
		}
		p, err := unix.BytePtrFromString(dir + "/" + file)
		if err != nil {
			return unix.EINVAL
		}
		switch err := sysExecve(p, argv, envp); err {
		case nil:
			return nil
		case unix.EACCES:
			seenAccess = true
		case unix.ENOENT, unix.ENOTDIR:
		default:
			return err
		}
	}
	if seenAccess {
		return unix.EACCES
	}
	return unix.ENOENT
}

// sysSpawn backs posix_spawn with the runtime's fork+exec. The observable
// contract matches: the parent gets the child pid, the child image starts
// at path.
func sysSpawn(pid *int, path *byte, fileActions *FileActions, attr *SpawnAttr, argv, envp []*byte) error {
	p, err := syscall.ForkExec(unix.BytePtrToString(path), Strings(argv), procAttr(fileActions, attr, envp))
	if err != nil {
		return err
	}
	if pid != nil {
		*pid = p
	}
	return nil
}

func sysSpawnp(pid *int, file *byte, fileActions *FileActions, attr *SpawnAttr, argv, envp []*byte) error {
	name := unix.BytePtrToString(file)
	if !strings.ContainsRune(name, '/') {
		resolved, err := exec.LookPath(name)
		if err != nil {
			return unix.ENOENT
		}
		name = resolved
	}
	p, err := syscall.ForkExec(name, Strings(argv), procAttr(fileActions, attr, envp))
	if err != nil {
		return err
	}
	if pid != nil {
		*pid = p
	}
	return nil
}

func procAttr(fileActions *FileActions, attr *SpawnAttr, envp []*byte) *syscall.ProcAttr {
	pa := &syscall.ProcAttr{
		Env:   Strings(envp),
		Files: []uintptr{0, 1, 2},
	}
	if fileActions != nil && fileActions.Files != nil {
		pa.Files = fileActions.Files
	}
	if attr != nil {
		pa.Dir = attr.Dir
		pa.Sys = attr.Sys
	}
	return pa
}
