//go:build !unix

package fpcache

import "os"

// Without flock the in-process mutex and O_APPEND are the only guards.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
