//go:build unix

package daemon

import "golang.org/x/sys/unix"

// restrictFileCreationMask sets the process-wide umask to 0o177, so
// any file this process creates afterward is at most mode 0o600. The
// previous mask is discarded; the daemon never reads it back (§9,
// "process-wide state").
func restrictFileCreationMask() error {
	unix.Umask(0o177)
	return nil
}
