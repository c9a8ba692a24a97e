//go:build !unix

package daemon

import "errors"

// restrictFileCreationMask has no portable equivalent outside unix-like
// systems; callers already treat its failure as logged-and-non-fatal
// per §6/§8 invariant 11's scope (unix only).
func restrictFileCreationMask() error {
	return errors.New("umask restriction is not supported on this platform")
}
