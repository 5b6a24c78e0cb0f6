//go:build unix

package fingerprint

import (
	"io/fs"
	"os/user"
	"strconv"
	"sync"
	"syscall"
)

var (
	namesMu    sync.Mutex
	userNames  = map[uint32]string{}
	groupNames = map[uint32]string{}
)

// ownership resolves uid and gid to account names, falling back to the
// numeric id when the account database has no entry.
func ownership(info fs.FileInfo) (owner, group string) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", ""
	}

	namesMu.Lock()
	defer namesMu.Unlock()

	uid, gid := uint32(stat.Uid), uint32(stat.Gid)

	owner, ok = userNames[uid]
	if !ok {
		owner = strconv.FormatUint(uint64(uid), 10)
		if u, err := user.LookupId(owner); err == nil {
			owner = u.Username
		}
		userNames[uid] = owner
	}

	group, ok = groupNames[gid]
	if !ok {
		group = strconv.FormatUint(uint64(gid), 10)
		if g, err := user.LookupGroupId(group); err == nil {
			group = g.Name
		}
		groupNames[gid] = group
	}

	return owner, group
}
