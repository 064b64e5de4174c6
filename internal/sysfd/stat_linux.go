package sysfd

import (
	"time"

	"github.com/momentics/hioload-uv/api"
	"golang.org/x/sys/unix"
)

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
		Atime:   time.Unix(st.Atim.Unix()),
		Mtime:   time.Unix(st.Mtim.Unix()),
		Ctime:   time.Unix(st.Ctim.Unix()),
	}
}
