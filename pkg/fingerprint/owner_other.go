//go:build !unix

package fingerprint

import "io/fs"

// ownership is empty where the platform has no uid/gid concept.
func ownership(fs.FileInfo) (owner, group string) {
	return "", ""
}
