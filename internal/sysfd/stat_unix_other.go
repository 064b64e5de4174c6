//go:build unix && !linux && !darwin

package sysfd

import (
	"github.com/momentics/hioload-uv/api"
	"golang.org/x/sys/unix"
)

// convertStat keeps the fields whose names agree across the remaining BSDs.
func convertStat(st *unix.Stat_t) api.Stat {
	return api.Stat{
		Dev:     uint64(st.Dev),
		Mode:    uint64(st.Mode),
		Nlink:   uint64(st.Nlink),
		UID:     uint64(st.Uid),
		GID:     uint64(st.Gid),
		Rdev:    uint64(st.Rdev),
		Ino:     uint64(st.Ino),
		Size:    uint64(st.Size),
		Blksize: uint64(st.Blksize),
		Blocks:  uint64(st.Blocks),
	}
}
