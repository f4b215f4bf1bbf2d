package platform

import (
	"fmt"
	"os/exec"
)

// RequiredBinaries lists external system binaries the app needs to function
var RequiredBinaries = []string{
	"ffmpeg",
}

// ValidateDependencies fails fast when a required binary is missing from
// PATH. An explicitly configured ffmpeg path bypasses this check.
func ValidateDependencies() error {
	for _, bin := range RequiredBinaries {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("required dependency: '%s' not found in PATH", bin)
		}
	}
	return nil
}
