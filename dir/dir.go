package dir

import (
	"strings"

	"github.com/tchajed/goose/machine"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/inode"
)

// A directory is an inode whose content is a sequence of DIRENTSZ-byte
// entries {inum uint32, name [DIRSIZ]byte}.  An entry with inum 0 is
// free.  Callers serialize mutations of a directory by holding its
// lock across the whole operation.

type dirEnt struct {
	inum common.Inum
	name string // <= DIRSIZ
}

// TruncName cuts name to the form an entry stores: at most DIRSIZ
// bytes, ending before the first NUL.
func TruncName(name string) string {
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	if uint64(len(name)) > common.DIRSIZ {
		return name[:common.DIRSIZ]
	}
	return name
}

func encodeDirEnt(de *dirEnt) []byte {
	d := make([]byte, common.DIRENTSZ)
	machine.UInt32Put(d[0:4], uint32(de.inum))
	copy(d[4:], TruncName(de.name))
	return d
}

func decodeDirEnt(d []byte) *dirEnt {
	inum := machine.UInt32Get(d[0:4])
	name := d[4:common.DIRENTSZ]
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return &dirEnt{inum: common.Inum(inum), name: string(name[:n])}
}

func readEnt(dp *inode.Inode, off uint64) *dirEnt {
	data := make([]byte, common.DIRENTSZ)
	n, err := dp.Read(data, off)
	if err != nil || n != common.DIRENTSZ {
		panic("dirlookup read")
	}
	return decodeDirEnt(data)
}

func writeEnt(dp *inode.Inode, off uint64, de *dirEnt) {
	n, err := dp.Write(encodeDirEnt(de), off)
	if err != nil || n != common.DIRENTSZ {
		panic("dirlink")
	}
}

// Lookup looks for name in directory dp. On success it returns the
// (unlocked, referenced) inode and the byte offset of its entry.
// Caller must hold dp's lock.
func Lookup(dp *inode.Inode, name string) (*inode.Inode, uint64, bool) {
	if !dp.IsDir() {
		panic("dirlookup not DIR")
	}
	name = TruncName(name)
	for off := uint64(0); off < uint64(dp.Size); off += common.DIRENTSZ {
		de := readEnt(dp, off)
		if de.inum == common.NULLINUM {
			continue
		}
		if de.name == name {
			util.DPrintf(10, "Lookup # %d: %s -> %d off %d\n", dp.Inum, name, de.inum, off)
			return dp.Icache().Get(dp.Dev, de.inum), off, true
		}
	}
	return nil, 0, false
}

// Link writes a new entry (name, inum) into dp, reusing a free entry
// if there is one.  Caller must hold dp's lock and be inside a
// transaction.
func Link(dp *inode.Inode, name string, inum common.Inum) error {
	ip, _, ok := Lookup(dp, name)
	if ok {
		ip.Put()
		return unix.EEXIST
	}

	size := uint64(dp.Size)
	off := dp.Dcache.Start(uint64(inum), common.DIRENTSZ, size)
	for ; off < size; off += common.DIRENTSZ {
		de := readEnt(dp, off)
		if de.inum == common.NULLINUM {
			break
		}
	}
	util.DPrintf(5, "Link # %d: %s -> %d off %d\n", dp.Inum, name, inum, off)
	writeEnt(dp, off, &dirEnt{inum: inum, name: name})
	dp.Dcache.Record(uint64(inum), off)
	return nil
}

// Unlink frees the entry at off, as returned by Lookup.
func Unlink(dp *inode.Inode, off uint64) {
	util.DPrintf(5, "Unlink # %d: off %d\n", dp.Inum, off)
	writeEnt(dp, off, &dirEnt{inum: common.NULLINUM, name: ""})
}

// IsEmpty reports whether dp has no entries besides "." and "..".
func IsEmpty(dp *inode.Inode) bool {
	for off := 2 * common.DIRENTSZ; off < uint64(dp.Size); off += common.DIRENTSZ {
		de := readEnt(dp, off)
		if de.inum != common.NULLINUM {
			return false
		}
	}
	return true
}

// InitDir links "." and ".." into a new directory dp.
func InitDir(dp *inode.Inode, parent common.Inum) error {
	if err := Link(dp, ".", dp.Inum); err != nil {
		return err
	}
	return Link(dp, "..", parent)
}

// Apply calls f on every live entry of dp, in directory order.
func Apply(dp *inode.Inode, f func(name string, inum common.Inum, off uint64)) {
	if !dp.IsDir() {
		panic("Apply")
	}
	for off := uint64(0); off < uint64(dp.Size); off += common.DIRENTSZ {
		de := readEnt(dp, off)
		if de.inum == common.NULLINUM {
			continue
		}
		f(de.name, de.inum, off)
	}
}
