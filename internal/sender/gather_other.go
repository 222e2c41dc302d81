//go:build !linux && !darwin

package sender

import "os"

// uidAndUserName has no portable way to read ownership metadata on this
// platform, so preserveUser transfers simply get a zero uid and no name.
func uidAndUserName(fi os.FileInfo, preserveUser bool) (int32, string) {
	return 0, ""
}
