package browser

import (
	"fmt"
	"runtime"
)

// DefaultAllowList returns the platform-specific set of browser executable
// paths that may be launched without the operator override flag. Monitor
// configuration feeds the executable path, so an open list would let a monitor
// run arbitrary local binaries.
func DefaultAllowList() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	default:
		return []string{
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/snap/bin/chromium",
		}
	}
}

// ValidateExecutablePath checks a configured browser executable against the
// allow list. The list is injected so the function stays pure; callers pass
// DefaultAllowList() in production. An empty path is valid and means the engine
// default. allowAny is the explicit operator override.
func ValidateExecutablePath(path string, allowAny bool, allowList []string) error {
	if path == "" || allowAny {
		return nil
	}
	for _, allowed := range allowList {
		if path == allowed {
			return nil
		}
	}
	return fmt.Errorf("browser executable %q is not on the allow list", path)
}
