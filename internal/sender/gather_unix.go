//go:build linux || darwin

package sender

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// uidAndUserName reads the owning uid (and, if it resolves, the
// username) from a Lstat result's platform-specific Sys() value.
func uidAndUserName(fi os.FileInfo, preserveUser bool) (int32, string) {
	if !preserveUser {
		return 0, ""
	}
	stt, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, ""
	}
	uid := int32(stt.Uid)
	name := ""
	if u, err := user.LookupId(strconv.FormatUint(uint64(stt.Uid), 10)); err == nil {
		name = u.Username
	}
	return uid, name
}
