// Package wire defines the argument-vector protocol between the shim side
// of an interception and the relay that unwinds it.
//
// A rerouted call replaces the original vector with:
//
//	relay --destination SOCK [--verbose] [--file NAME] [--search-path PATH] -- ORIGINAL-ARGV...
//
// Everything before the separator describes the session and the original
// call shape; everything after it is the original argument vector, byte
// for byte. The relay decodes the prefix, reports the command, and chains
// to the real executable.
package wire

import (
	"fmt"
	"strings"
)

// Vector tokens. The serializing side emits these as vector entries; the
// relay matches them by value.
const (
	// Separator closes the header. Entries after it are the original argv.
	Separator = "--"
	// DestinationFlag precedes the collector socket path.
	DestinationFlag = "--destination"
	// VerboseFlag asks the relay to narrate failures on stderr.
	VerboseFlag = "--verbose"
	// FileFlag precedes the file argument of a searched call shape.
	FileFlag = "--file"
	// SearchPathFlag precedes the explicit search path of an execvP shape.
	SearchPathFlag = "--search-path"
)

// Request is a decoded rerouted vector.
type Request struct {
	// Destination is the collector socket the execution is reported to.
	Destination string
	// Verbose mirrors the session's verbose setting.
	Verbose bool
	// File is the original call's file argument, empty when the call shape
	// carried an explicit path instead.
	File string
	// SearchPath is the explicit search path of an execvP shape, empty
	// otherwise.
	SearchPath string
	// Argv is the original argument vector.
	Argv []string
}

// Decode parses the vector a relay process receives as its arguments.
// args[0] is the relay's own path and is skipped.
func Decode(args []string) (*Request, error) {
	req := &Request{}
	rest := args[1:]
	for len(rest) > 0 {
		switch tok := rest[0]; tok {
		case Separator:
			rest = rest[1:]
			if len(rest) == 0 {
				return nil, fmt.Errorf("vector carries no command after separator")
			}
			if req.Destination == "" {
				return nil, fmt.Errorf("vector carries no %s", DestinationFlag)
			}
			req.Argv = rest
			return req, nil
		case VerboseFlag:
			req.Verbose = true
			rest = rest[1:]
		case DestinationFlag, FileFlag, SearchPathFlag:
			if len(rest) < 2 || rest[1] == Separator {
				return nil, fmt.Errorf("%s is missing its value", tok)
			}
			switch tok {
			case DestinationFlag:
				req.Destination = rest[1]
			case FileFlag:
				req.File = rest[1]
			case SearchPathFlag:
				req.SearchPath = rest[1]
			}
			rest = rest[2:]
		default:
			return nil, fmt.Errorf("unexpected token %q before separator", tok)
		}
	}
	return nil, fmt.Errorf("vector has no %q separator", Separator)
}

// Format renders a request back into the canonical header order, for
// diagnostics.
func (r *Request) Format() string {
	var b strings.Builder
	b.WriteString(DestinationFlag + " " + r.Destination)
	if r.Verbose {
		b.WriteString(" " + VerboseFlag)
	}
	if r.File != "" {
		b.WriteString(" " + FileFlag + " " + r.File)
	}
	if r.SearchPath != "" {
		b.WriteString(" " + SearchPathFlag + " " + r.SearchPath)
	}
	b.WriteString(" " + Separator + " ")
	b.WriteString(strings.Join(r.Argv, " "))
	return b.String()
}
