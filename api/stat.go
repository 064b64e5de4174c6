// File: api/stat.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral stat payload delivered by stat/fstat requests.

package api

import "time"

// Stat mirrors the fields a stat(2)-style call reports.
type Stat struct {
	Dev       uint64
	Mode      uint64
	Nlink     uint64
	UID       uint64
	GID       uint64
	Rdev      uint64
	Ino       uint64
	Size      uint64
	Blksize   uint64
	Blocks    uint64
	Flags     uint64
	Gen       uint64
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Birthtime time.Time
}

// IsDir reports whether the mode bits describe a directory.
func (s Stat) IsDir() bool { return s.Mode&0o170000 == 0o040000 }

// IsRegular reports whether the mode bits describe a regular file.
func (s Stat) IsRegular() bool { return s.Mode&0o170000 == 0o100000 }
