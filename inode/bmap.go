package inode

import (
	"sync/atomic"

	"github.com/mit-pdos/go-inodefs/common"
)

// Addrs is an inode's block map: NDIRECT direct blocks, then a
// single-indirect block of NINDIRECT entries, then a double-indirect
// block of NINDIRECT indirect blocks.  Zero means absent.
type Addrs struct {
	Direct    [common.NDIRECT]common.Bnum
	Indirect  common.Bnum
	DIndirect common.Bnum
}

func (a *Addrs) slice() []uint64 {
	s := make([]uint64, common.NADDRS)
	for i, bn := range a.Direct {
		s[i] = uint64(bn)
	}
	s[common.INDIRECT] = uint64(a.Indirect)
	s[common.DINDIRECT] = uint64(a.DIndirect)
	return s
}

func addrsFrom(s []uint64) Addrs {
	var a Addrs
	for i := range a.Direct {
		a.Direct[i] = common.Bnum(s[i])
	}
	a.Indirect = common.Bnum(s[common.INDIRECT])
	a.DIndirect = common.Bnum(s[common.DINDIRECT])
	return a
}

type Level uint64

const (
	DIRECT Level = iota
	SINGLE
	DOUBLE
)

// Loc says where logical block bn lives: in Direct[Inner], in entry
// Inner of the single-indirect block, or in entry Inner of the
// indirect block found at entry Outer of the double-indirect block.
type Loc struct {
	Level Level
	Outer uint64
	Inner uint64
}

// Locate maps a logical block number to its place in the block map.
// It returns false past the largest file.
func Locate(bn uint64) (Loc, bool) {
	if bn < common.NDIRECT {
		return Loc{Level: DIRECT, Inner: bn}, true
	}
	bn -= common.NDIRECT
	if bn < common.NINDIRECT {
		return Loc{Level: SINGLE, Inner: bn}, true
	}
	bn -= common.NINDIRECT
	if bn < common.NINDIRECT*common.NINDIRECT {
		return Loc{Level: DOUBLE, Outer: bn / common.NINDIRECT, Inner: bn % common.NINDIRECT}, true
	}
	return Loc{}, false
}

// entry returns entry i of indirect block ind, allocating the target
// block if the entry is empty.
func (ip *Inode) entry(ind common.Bnum, i uint64) common.Bnum {
	ic := ip.ic
	b := ic.Bc.Bread(ip.Dev, ind)
	addr := getAddr(b.Data, i)
	if addr == 0 {
		addr = ic.Alloc.Balloc()
		putAddr(b.Data, i, addr)
		ic.Log.Write(b)
	}
	ic.Bc.Brelse(b)
	return addr
}

// bmap returns the disk block address of the nth block in ip,
// allocating it if there is no such block.  The boolean reports
// whether ip.Addrs changed, in which case the caller must Update.
func (ip *Inode) bmap(bn uint64) (common.Bnum, bool) {
	loc, ok := Locate(bn)
	if !ok {
		panic("bmap: out of range")
	}
	alloc := ip.ic.Alloc
	var changed = false
	switch loc.Level {
	case DIRECT:
		if ip.Addrs.Direct[loc.Inner] == 0 {
			ip.Addrs.Direct[loc.Inner] = alloc.Balloc()
			changed = true
		}
		return ip.Addrs.Direct[loc.Inner], changed
	case SINGLE:
		if ip.Addrs.Indirect == 0 {
			ip.Addrs.Indirect = alloc.Balloc()
			changed = true
		}
		return ip.entry(ip.Addrs.Indirect, loc.Inner), changed
	default:
		if ip.Addrs.DIndirect == 0 {
			ip.Addrs.DIndirect = alloc.Balloc()
			changed = true
		}
		ind := ip.entry(ip.Addrs.DIndirect, loc.Outer)
		return ip.entry(ind, loc.Inner), changed
	}
}

func (ip *Inode) peek(ind common.Bnum, i uint64) common.Bnum {
	if ind == 0 {
		return 0
	}
	b := ip.ic.Bc.Bread(ip.Dev, ind)
	addr := getAddr(b.Data, i)
	ip.ic.Bc.Brelse(b)
	return addr
}

// lookup is bmap without allocation; it returns 0 for a hole.
func (ip *Inode) lookup(bn uint64) common.Bnum {
	loc, ok := Locate(bn)
	if !ok {
		panic("lookup: out of range")
	}
	switch loc.Level {
	case DIRECT:
		return ip.Addrs.Direct[loc.Inner]
	case SINGLE:
		return ip.peek(ip.Addrs.Indirect, loc.Inner)
	default:
		return ip.peek(ip.peek(ip.Addrs.DIndirect, loc.Outer), loc.Inner)
	}
}

// freeEntries frees the blocks listed in indirect block ind, stopping
// at the first empty entry.  Files are assumed to have no holes; a
// sparse file leaks the blocks past its first hole.
func (ip *Inode) freeEntries(ind common.Bnum) {
	ic := ip.ic
	b := ic.Bc.Bread(ip.Dev, ind)
	for j := uint64(0); j < common.NINDIRECT; j++ {
		a := getAddr(b.Data, j)
		if a == 0 {
			break
		}
		ic.Alloc.Bfree(a)
	}
	ic.Bc.Brelse(b)
}

// trunc discards ip's content.  Only called when the inode has no
// links and no other in-memory references.
func (ip *Inode) trunc() {
	if atomic.LoadInt32(&ip.ref) != 1 {
		panic("itrunc")
	}
	ic := ip.ic
	for i := range ip.Addrs.Direct {
		if ip.Addrs.Direct[i] != 0 {
			ic.Alloc.Bfree(ip.Addrs.Direct[i])
			ip.Addrs.Direct[i] = 0
		}
	}

	if ip.Addrs.Indirect != 0 {
		ip.freeEntries(ip.Addrs.Indirect)
		ic.Alloc.Bfree(ip.Addrs.Indirect)
		ip.Addrs.Indirect = 0
	}

	if ip.Addrs.DIndirect != 0 {
		b := ic.Bc.Bread(ip.Dev, ip.Addrs.DIndirect)
		for i := uint64(0); i < common.NINDIRECT; i++ {
			ind := getAddr(b.Data, i)
			if ind != 0 {
				ip.freeEntries(ind)
				ic.Alloc.Bfree(ind)
			}
		}
		ic.Bc.Brelse(b)
		ic.Alloc.Bfree(ip.Addrs.DIndirect)
		ip.Addrs.DIndirect = 0
	}

	ip.Size = 0
	ip.Update()
}
