//go:build !linux

package observe

func newPlatformMonitor(cfg Config) (Monitor, error) {
	return NewStubMonitor(cfg), nil
}
