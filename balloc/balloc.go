// Package balloc allocates data blocks from the on-disk free bitmap.
// Every change goes through the log, so callers must be inside a
// transaction.  Bit updates are serialized by the bitmap buffer's
// sleep-lock, held from Bread to Brelse.
package balloc

import (
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/bcache"
	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/super"
	"github.com/mit-pdos/go-inodefs/wal"
)

type Alloc struct {
	bc  *bcache.Bcache
	log *wal.Log
	sb  *super.Superblock
	dev uint32
}

func MkAlloc(bc *bcache.Bcache, log *wal.Log, sb *super.Superblock, dev uint32) *Alloc {
	return &Alloc{
		bc:  bc,
		log: log,
		sb:  sb,
		dev: dev,
	}
}

func (a *Alloc) bzero(bn common.Bnum) {
	b := a.bc.Bread(a.dev, bn)
	for i := range b.Data {
		b.Data[i] = 0
	}
	a.log.Write(b)
	a.bc.Brelse(b)
}

// Balloc allocates a zeroed disk block.
func (a *Alloc) Balloc() common.Bnum {
	size := uint64(a.sb.Size)
	for base := uint64(0); base < size; base += common.BPB {
		b := a.bc.Bread(a.dev, a.sb.BBlock(common.Bnum(base)))
		for bi := uint64(0); bi < common.BPB && base+bi < size; bi++ {
			bn := common.Bnum(base + bi)
			if bn < a.sb.DataStart() {
				continue
			}
			m := byte(1 << (bi % 8))
			if b.Data[bi/8]&m == 0 {
				b.Data[bi/8] |= m // mark block in use
				a.log.Write(b)
				a.bc.Brelse(b)
				a.bzero(bn)
				util.DPrintf(10, "Balloc: %d\n", bn)
				return bn
			}
		}
		a.bc.Brelse(b)
	}
	panic("balloc: out of blocks")
}

// Bfree frees disk block bn.
func (a *Alloc) Bfree(bn common.Bnum) {
	if bn < a.sb.DataStart() || uint64(bn) >= uint64(a.sb.Size) {
		panic("bfree: bad block")
	}
	b := a.bc.Bread(a.dev, a.sb.BBlock(bn))
	bi := uint64(bn) % common.BPB
	m := byte(1 << (bi % 8))
	if b.Data[bi/8]&m == 0 {
		a.bc.Brelse(b)
		panic("freeing free block")
	}
	b.Data[bi/8] &^= m
	a.log.Write(b)
	a.bc.Brelse(b)
	util.DPrintf(10, "Bfree: %d\n", bn)
}

// IsAllocated reports the bitmap state of bn, outside any transaction.
func (a *Alloc) IsAllocated(bn common.Bnum) bool {
	b := a.bc.Bread(a.dev, a.sb.BBlock(bn))
	bi := uint64(bn) % common.BPB
	used := b.Data[bi/8]&byte(1<<(bi%8)) != 0
	a.bc.Brelse(b)
	return used
}

// NFree counts the free data blocks.
func (a *Alloc) NFree() uint64 {
	var n uint64 = 0
	for bn := a.sb.DataStart(); uint64(bn) < uint64(a.sb.Size); bn++ {
		if !a.IsAllocated(bn) {
			n++
		}
	}
	return n
}
