package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePlainReroute(t *testing.T) {
	req, err := Decode([]string{
		"/usr/libexec/earshot-relay",
		"--destination", "/run/earshot/collector.sock",
		"--", "/usr/bin/cc", "-c", "main.c",
	})
	require.NoError(t, err)

	assert.Equal(t, "/run/earshot/collector.sock", req.Destination)
	assert.False(t, req.Verbose)
	assert.Empty(t, req.File)
	assert.Empty(t, req.SearchPath)
	assert.Equal(t, []string{"/usr/bin/cc", "-c", "main.c"}, req.Argv)
}

func TestDecodeSearchedShape(t *testing.T) {
	req, err := Decode([]string{
		"relay",
		"--destination", "/tmp/c.sock",
		"--verbose",
		"--file", "cc",
		"--", "cc", "-c", "main.c",
	})
	require.NoError(t, err)

	assert.True(t, req.Verbose)
	assert.Equal(t, "cc", req.File)
	assert.Equal(t, []string{"cc", "-c", "main.c"}, req.Argv)
}

func TestDecodeExplicitSearchPath(t *testing.T) {
	req, err := Decode([]string{
		"relay",
		"--destination", "/tmp/c.sock",
		"--file", "cc",
		"--search-path", "/opt/cross/bin:/usr/bin",
		"--", "cc", "--version",
	})
	require.NoError(t, err)

	assert.Equal(t, "cc", req.File)
	assert.Equal(t, "/opt/cross/bin:/usr/bin", req.SearchPath)
}

func TestDecodeHeaderOrderIsFree(t *testing.T) {
	req, err := Decode([]string{
		"relay",
		"--file", "cc",
		"--verbose",
		"--destination", "/tmp/c.sock",
		"--", "cc",
	})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/c.sock", req.Destination)
	assert.Equal(t, "cc", req.File)
	assert.True(t, req.Verbose)
}

func TestDecodeArgvMayContainFlagTokens(t *testing.T) {
	// Everything after the separator is opaque, including our own tokens.
	req, err := Decode([]string{
		"relay",
		"--destination", "/tmp/c.sock",
		"--", "cc", "--verbose", "--", "--file",
	})
	require.NoError(t, err)

	assert.False(t, req.Verbose)
	assert.Equal(t, []string{"cc", "--verbose", "--", "--file"}, req.Argv)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no separator", []string{"relay", "--destination", "/tmp/c.sock"}},
		{"no command after separator", []string{"relay", "--destination", "/tmp/c.sock", "--"}},
		{"no destination", []string{"relay", "--verbose", "--", "cc"}},
		{"destination missing value", []string{"relay", "--destination", "--", "cc"}},
		{"file missing value", []string{"relay", "--destination", "/tmp/c.sock", "--file", "--", "cc"}},
		{"unknown token", []string{"relay", "--wat", "--", "cc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestFormatRoundTrips(t *testing.T) {
	req := &Request{
		Destination: "/tmp/c.sock",
		Verbose:     true,
		File:        "cc",
		SearchPath:  "/usr/bin",
		Argv:        []string{"cc", "-c", "main.c"},
	}
	assert.Equal(t,
		"--destination /tmp/c.sock --verbose --file cc --search-path /usr/bin -- cc -c main.c",
		req.Format())
}
