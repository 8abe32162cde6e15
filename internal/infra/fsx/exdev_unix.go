//go:build unix

package fsx

import (
	"errors"
	"syscall"
)

// isEXDEV reports a rename across file systems. *os.LinkError unwraps to the errno.
func isEXDEV(err error) bool { return errors.Is(err, syscall.EXDEV) }
