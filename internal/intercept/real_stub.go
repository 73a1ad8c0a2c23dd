//go:build !linux

package intercept

import "fmt"

// Interception fronts a Linux shim directory, so other platforms get no
// real table: every lookup fails and entry points surface ENOSYS.
func loadPlatformTable() (*Table, error) {
	return nil, fmt.Errorf("real exec table is not available on this platform")
}
