//go:build !darwin && !linux && !windows

package fallback

// stubInjector is used on platforms without a key injection path.
type stubInjector struct{}

// NewInjector returns a stub that is never available.
func NewInjector() KeyInjector {
	return stubInjector{}
}

func (stubInjector) Available() (bool, string) {
	return false, "key injection not implemented for this platform"
}

func (stubInjector) SendCopy() error {
	return ErrToolUnavailable
}

func (stubInjector) SendPaste() error {
	return ErrToolUnavailable
}
