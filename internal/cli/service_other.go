//go:build !windows

package cli

// runAsService reports false: outside Windows the controller is supervised
// by the init system as a regular foreground process.
func runAsService() (bool, error) {
	return false, nil
}
