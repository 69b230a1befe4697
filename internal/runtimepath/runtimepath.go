package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Dir returns the runtime directory used for the IPC socket and lock file.
// Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) <tmp>/focusmute-runtime-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	if uid >= 0 {
		runUserDir := fmt.Sprintf("/run/user/%d", uid)
		if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
			return runUserDir, nil
		}
	}

	tmpDir := filepath.Join(os.TempDir(), "focusmute-runtime-"+userSuffix(uid))
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// userSuffix is the uid, or the user name where uids do not exist.
func userSuffix(uid int) string {
	if uid >= 0 {
		return strconv.Itoa(uid)
	}
	if name := os.Getenv("USERNAME"); name != "" {
		return name
	}
	return "default"
}

// SocketPath returns the daemon IPC socket path.
func SocketPath() (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, "focusmute.sock"), nil
}

// PIDFilePath returns the file the daemon writes its pid to while running.
func PIDFilePath() (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, "focusmute.pid"), nil
}
