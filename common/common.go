package common

import (
	"math"

	jcommon "github.com/mit-pdos/go-journal/common"
	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"
)

type Inum = jcommon.Inum
type Bnum = jcommon.Bnum

const (
	NULLINUM Inum = jcommon.NULLINUM
	ROOTINO  Inum = jcommon.ROOTINUM
	NULLBNUM Bnum = jcommon.NULLBNUM
)

const (
	BSIZE     uint64 = disk.BlockSize
	NDIRECT   uint64 = 6
	NINDIRECT uint64 = BSIZE / 4 // block numbers are 32 bit on disk
	MAXFILE   uint64 = NDIRECT + NINDIRECT + NINDIRECT*NINDIRECT

	// slots in the dinode address array
	NADDRS    uint64 = NDIRECT + 2
	INDIRECT  uint64 = NDIRECT
	DINDIRECT uint64 = NDIRECT + 1

	DINODESZ uint64 = 64          // on-disk inode size
	IPB      uint64 = BSIZE / DINODESZ // inodes per block
	BPB      uint64 = BSIZE * 8   // bitmap bits per block

	DIRENTSZ uint64 = 256
	DIRSIZ   uint64 = DIRENTSZ - 4 // name bytes in a directory entry
)

// MaxFileSize is the largest byte size an inode can describe; the
// on-disk size field is 32 bits wide.
func MaxFileSize() uint64 {
	n := MAXFILE * BSIZE
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return n
}

// File type bits of an inode's mode.
const (
	S_IFMT  = uint32(unix.S_IFMT)
	S_IFDIR = uint32(unix.S_IFDIR)
	S_IFREG = uint32(unix.S_IFREG)
	S_IFLNK = uint32(unix.S_IFLNK)
	S_IFBLK = uint32(unix.S_IFBLK)
	S_IFCHR = uint32(unix.S_IFCHR)

	S_IRWXU = uint32(unix.S_IRWXU)
)

func IsAny(mode uint32) bool {
	return mode&S_IFMT != 0
}

func IsDir(mode uint32) bool {
	return mode&S_IFMT == S_IFDIR
}

func IsReg(mode uint32) bool {
	return mode&S_IFMT == S_IFREG
}

func IsLnk(mode uint32) bool {
	return mode&S_IFMT == S_IFLNK
}

// IsDev reports whether mode describes a block or character device
// file, whose I/O goes through the device table.
func IsDev(mode uint32) bool {
	t := mode & S_IFMT
	return t == S_IFBLK || t == S_IFCHR
}

type Stat struct {
	Dev   uint32
	Ino   Inum
	Nlink int16
	Size  uint32
	Mode  uint32
	Uid   uint16
	Gid   uint16
	Atime uint32
	Ctime uint32
	Mtime uint32
}
