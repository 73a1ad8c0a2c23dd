// Package session carries the supervising run's identity through the
// environment. The supervisor injects the variables before starting
// the build; every intercepted process reads them back to decide
// whether, and where, to report.
package session

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"golang.org/x/sys/unix"

	"github.com/earshot-dev/earshot/internal/intercept"
	"github.com/earshot-dev/earshot/internal/wire"
)

// Environment variable names the supervisor injects.
const (
	DestinationVar = "EARSHOT_DESTINATION"
	RelayVar       = "EARSHOT_RELAY"
	SearchPathVar  = "EARSHOT_PATH"
	VerboseVar     = "EARSHOT_VERBOSE"
)

// State is a supervising run as seen from inside an intercepted
// process.
//
// SearchPath holds PATH as it was before the supervisor prepended its
// shim directory. Resolving rerouted commands against it is what keeps
// a shim from finding itself again.
type State struct {
	Destination string `env:"EARSHOT_DESTINATION"`
	Relay       string `env:"EARSHOT_RELAY"`
	SearchPath  string `env:"EARSHOT_PATH"`
	Verbose     bool   `env:"EARSHOT_VERBOSE"`
}

// FromEnviron reads the session from the process environment. Running
// without a supervisor is the normal case and returns (nil, nil). An
// incomplete session is treated the same way, since rerouting without
// a relay or a destination could only break the build.
func FromEnviron() (*State, error) {
	var st State
	if err := env.Parse(&st); err != nil {
		return nil, fmt.Errorf("parsing session environment: %w", err)
	}
	if st.Destination == "" || st.Relay == "" {
		return nil, nil
	}
	return &st, nil
}

// Environ returns the variables the supervisor injects into the
// build's environment.
func (s *State) Environ() []string {
	vars := []string{
		DestinationVar + "=" + s.Destination,
		RelayVar + "=" + s.Relay,
	}
	if s.SearchPath != "" {
		vars = append(vars, SearchPathVar+"="+s.SearchPath)
	}
	if s.Verbose {
		vars = append(vars, VerboseVar+"=1")
	}
	return vars
}

// Serializer returns the session's exec-vector encoding: the relay
// word, the destination flag with its value, and the verbose flag when
// set. It writes no terminator and its estimate is exact; the
// execution encoding that follows closes the vector.
func (s *State) Serializer() (intercept.Serializable, error) {
	relay, err := unix.BytePtrFromString(s.Relay)
	if err != nil {
		return nil, fmt.Errorf("relay path: %w", err)
	}
	dest, err := unix.BytePtrFromString(s.Destination)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	words := []*byte{relay, wordDestination, dest}
	if s.Verbose {
		words = append(words, wordVerbose)
	}
	return encoding{words: words}, nil
}

type encoding struct {
	words []*byte
}

func (e encoding) Estimate() int { return len(e.words) }

func (e encoding) Copy(dst []*byte) []*byte {
	copy(dst, e.words)
	return dst[len(e.words):]
}

var _ intercept.Serializable = encoding{}

var (
	wordDestination = mustWord(wire.DestinationFlag)
	wordVerbose     = mustWord(wire.VerboseFlag)
)

func mustWord(s string) *byte {
	p, err := unix.BytePtrFromString(s)
	if err != nil {
		panic("session: flag token contains NUL: " + s)
	}
	return p
}
