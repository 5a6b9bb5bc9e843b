package inode

import (
	"github.com/mit-pdos/go-journal/util"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/param"
)

// A Device handles I/O on device files whose major number it is
// registered under.
type Device interface {
	Read(ip *Inode, dst []byte) (uint64, error)
	Write(ip *Inode, src []byte) (uint64, error)
}

// Devsw maps major device numbers to their handlers.
type Devsw struct {
	devs [param.NDEV]Device
}

func MkDevsw() *Devsw {
	return &Devsw{}
}

func (sw *Devsw) Register(major int16, d Device) {
	if major < 0 || int(major) >= param.NDEV {
		panic("Register")
	}
	sw.devs[major] = d
}

func (sw *Devsw) lookup(major int16) Device {
	if sw == nil || major < 0 || int(major) >= param.NDEV {
		return nil
	}
	return sw.devs[major]
}

// Read reads up to len(dst) bytes from ip at off. Caller must hold
// the lock.
func (ip *Inode) Read(dst []byte, off uint64) (uint64, error) {
	if common.IsDev(ip.Mode) {
		d := ip.ic.Devsw.lookup(ip.Major)
		if d == nil {
			return 0, unix.ENODEV
		}
		return d.Read(ip, dst)
	}

	n := uint64(len(dst))
	size := uint64(ip.Size)
	if off > size || util.SumOverflows(off, n) {
		return 0, unix.EDOM
	}
	if off+n > size {
		n = size - off
	}
	bc := ip.ic.Bc
	var tot uint64 = 0
	for tot < n {
		m := util.Min(n-tot, common.BSIZE-off%common.BSIZE)
		bn := ip.lookup(off / common.BSIZE)
		if bn == 0 {
			for i := tot; i < tot+m; i++ {
				dst[i] = 0
			}
		} else {
			b := bc.Bread(ip.Dev, bn)
			copy(dst[tot:tot+m], b.Data[off%common.BSIZE:])
			bc.Brelse(b)
		}
		tot += m
		off += m
	}
	return n, nil
}

// Write writes src to ip at off, allocating blocks as needed. Caller
// must hold the lock and be inside a transaction that can absorb the
// blocks written.
func (ip *Inode) Write(src []byte, off uint64) (uint64, error) {
	if common.IsDev(ip.Mode) {
		d := ip.ic.Devsw.lookup(ip.Major)
		if d == nil {
			return 0, unix.ENODEV
		}
		return d.Write(ip, src)
	}

	n := uint64(len(src))
	if off > uint64(ip.Size) || util.SumOverflows(off, n) {
		return 0, unix.EDOM
	}
	if off+n > common.MaxFileSize() {
		return 0, unix.EFBIG
	}
	ic := ip.ic
	var dirty = false
	var tot uint64 = 0
	for tot < n {
		bn, changed := ip.bmap(off / common.BSIZE)
		dirty = dirty || changed
		b := ic.Bc.Bread(ip.Dev, bn)
		m := util.Min(n-tot, common.BSIZE-off%common.BSIZE)
		copy(b.Data[off%common.BSIZE:], src[tot:tot+m])
		ic.Log.Write(b)
		ic.Bc.Brelse(b)
		tot += m
		off += m
	}
	if n > 0 && off > uint64(ip.Size) {
		ip.Size = uint32(off)
		dirty = true
	}
	if dirty {
		ip.Update()
	}
	return n, nil
}
