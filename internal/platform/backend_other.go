//go:build !linux && !windows

package platform

import (
	"fmt"
	"runtime"
)

func newNativeBackend() (Backend, error) {
	return nil, fmt.Errorf("%s: %w", runtime.GOOS, ErrUnsupported)
}
