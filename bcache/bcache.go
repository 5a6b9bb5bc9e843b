package bcache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/sleeplock"
)

//
// Write-through block cache, shared by all attached devices.
//
// A buffer is either referenced (refcnt > 0) or on the lru list,
// never both. Buffers on the list may be recycled for other blocks.
//

type Buf struct {
	Dev     uint32
	Blockno common.Bnum
	Data    disk.Block
	valid   bool
	hashed  bool
	refcnt  uint32
	lock    *sleeplock.Sleeplock
	elem    *list.Element
}

func (b *Buf) String() string {
	return fmt.Sprintf("buf %d/%d ref %d", b.Dev, b.Blockno, b.refcnt)
}

type key struct {
	dev uint32
	bn  common.Bnum
}

type Bcache struct {
	mu    *sync.Mutex
	cond  *sync.Cond
	bufs  map[key]*Buf
	lru   *list.List // front is least recently used
	disks map[uint32]disk.Disk
}

func MkBcache(nbuf uint64) *Bcache {
	mu := new(sync.Mutex)
	bc := &Bcache{
		mu:    mu,
		cond:  sync.NewCond(mu),
		bufs:  make(map[key]*Buf),
		lru:   list.New(),
		disks: make(map[uint32]disk.Disk),
	}
	for i := uint64(0); i < nbuf; i++ {
		b := &Buf{
			Data: make(disk.Block, disk.BlockSize),
			lock: sleeplock.MkSleeplock("buffer"),
		}
		b.elem = bc.lru.PushBack(b)
	}
	return bc
}

// Attach makes d the backing store for device dev.
func (bc *Bcache) Attach(dev uint32, d disk.Disk) {
	bc.mu.Lock()
	bc.disks[dev] = d
	bc.mu.Unlock()
}

func (bc *Bcache) disk(dev uint32) disk.Disk {
	bc.mu.Lock()
	d, ok := bc.disks[dev]
	bc.mu.Unlock()
	if !ok {
		panic("bcache: no disk")
	}
	return d
}

func (bc *Bcache) Size(dev uint32) uint64 {
	return bc.disk(dev).Size()
}

func (bc *Bcache) ref(b *Buf) {
	if b.refcnt == 0 {
		bc.lru.Remove(b.elem)
		b.elem = nil
	}
	b.refcnt = b.refcnt + 1
}

func (bc *Bcache) unref(b *Buf) {
	if b.refcnt == 0 {
		panic("unref")
	}
	b.refcnt = b.refcnt - 1
	if b.refcnt == 0 {
		b.elem = bc.lru.PushBack(b)
		bc.cond.Signal()
	}
}

// Look through the cache for block bn on device dev.  If not found,
// recycle the least recently used unreferenced buffer, waiting for
// one to be released if all are in use.
func (bc *Bcache) bget(dev uint32, bn common.Bnum) *Buf {
	k := key{dev: dev, bn: bn}
	bc.mu.Lock()
	for {
		b, ok := bc.bufs[k]
		if ok {
			bc.ref(b)
			bc.mu.Unlock()
			b.lock.Acquire()
			return b
		}
		e := bc.lru.Front()
		if e != nil {
			b := e.Value.(*Buf)
			if b.hashed {
				delete(bc.bufs, key{dev: b.Dev, bn: b.Blockno})
			}
			b.hashed = true
			b.Dev = dev
			b.Blockno = bn
			b.valid = false
			bc.bufs[k] = b
			bc.ref(b)
			bc.mu.Unlock()
			b.lock.Acquire()
			return b
		}
		util.DPrintf(5, "bget: all buffers in use, waiting\n")
		bc.cond.Wait()
	}
}

// Bread returns a locked buffer with the contents of block bn.
func (bc *Bcache) Bread(dev uint32, bn common.Bnum) *Buf {
	b := bc.bget(dev, bn)
	if !b.valid {
		copy(b.Data, bc.disk(dev).Read(bn))
		b.valid = true
	}
	return b
}

// Bwrite writes b's contents to disk. Caller must hold b.
func (bc *Bcache) Bwrite(b *Buf) {
	if !b.lock.Holding() {
		panic("bwrite")
	}
	util.DPrintf(10, "Bwrite %v\n", b)
	blk := make(disk.Block, disk.BlockSize)
	copy(blk, b.Data)
	bc.disk(b.Dev).Write(b.Blockno, blk)
}

// Brelse releases a locked buffer and moves it to the most recently
// used end of the list once no one references it.
func (bc *Bcache) Brelse(b *Buf) {
	if !b.lock.Holding() {
		panic("brelse")
	}
	b.lock.Release()
	bc.mu.Lock()
	bc.unref(b)
	bc.mu.Unlock()
}

// Bpin keeps b in the cache until the matching Bunpin.
func (bc *Bcache) Bpin(b *Buf) {
	bc.mu.Lock()
	bc.ref(b)
	bc.mu.Unlock()
}

func (bc *Bcache) Bunpin(b *Buf) {
	bc.mu.Lock()
	bc.unref(b)
	bc.mu.Unlock()
}

func (bc *Bcache) Barrier(dev uint32) {
	bc.disk(dev).Barrier()
}
