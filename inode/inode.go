package inode

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/balloc"
	"github.com/mit-pdos/go-inodefs/bcache"
	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/dcache"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/sleeplock"
	"github.com/mit-pdos/go-inodefs/super"
	"github.com/mit-pdos/go-inodefs/wal"
)

// An inode describes a single unnamed file.  The cache keeps the
// in-memory copy of every inode that someone holds a reference to,
// and is write-through: code that changes a field mirrored on disk
// must call Update before unlocking.
//
// Dev, Inum, ref and bucket are protected by the lock of the bucket
// that holds the slot.  Everything else is protected by the inode's
// sleep-lock.  A typical sequence is:
//   ip := ic.Get(dev, inum)
//   ip.Lock()
//   ... examine and modify ip.xxx ...
//   ip.Unlock()
//   ip.Put()
type Inode struct {
	Dev    uint32
	Inum   common.Inum
	ref    int32
	bucket uint64
	lock   *sleeplock.Sleeplock
	valid  bool
	ic     *Icache

	// copy of the on-disk inode
	Major int16
	Minor int16
	Nlink int16
	Size  uint32
	Mode  uint32
	Uid   uint16
	Gid   uint16
	Ctime uint32
	Atime uint32
	Mtime uint32
	Addrs Addrs

	// link hint, for directories
	Dcache *dcache.Dcache
}

func (ip *Inode) String() string {
	return fmt.Sprintf("# %d/%d ref %d mode %o nlink %d sz %d", ip.Dev, ip.Inum,
		atomic.LoadInt32(&ip.ref), ip.Mode, ip.Nlink, ip.Size)
}

func (ip *Inode) Ref() int32 {
	return atomic.LoadInt32(&ip.ref)
}

// incIfLive takes a reference only if the slot is still in use.
func (ip *Inode) incIfLive() bool {
	for {
		r := atomic.LoadInt32(&ip.ref)
		if r <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&ip.ref, r, r+1) {
			return true
		}
	}
}

func (ip *Inode) matches(dev uint32, inum common.Inum) bool {
	return ip.Dev == dev && ip.Inum == inum
}

func now() uint32 {
	return uint32(time.Now().Unix())
}

type Icache struct {
	mu      []*sync.Mutex
	slots   [][]*Inode
	foreign []uint64 // live slots outside bucket h whose natural bucket is h
	nbucket uint64

	Dev   uint32
	Sb    *super.Superblock
	Bc    *bcache.Bcache
	Log   *wal.Log
	Alloc *balloc.Alloc
	Devsw *Devsw
}

// MkIcache builds a cache with one bucket per active core, at most
// param.NBUCKET of them.
func MkIcache(ncpu uint64, dev uint32, sb *super.Superblock, bc *bcache.Bcache,
	log *wal.Log, alloc *balloc.Alloc, devsw *Devsw) *Icache {
	n := util.Min(ncpu, param.NBUCKET)
	if n == 0 {
		n = 1
	}
	ic := &Icache{
		mu:      make([]*sync.Mutex, n),
		slots:   make([][]*Inode, n),
		foreign: make([]uint64, n),
		nbucket: n,
		Dev:     dev,
		Sb:      sb,
		Bc:      bc,
		Log:     log,
		Alloc:   alloc,
		Devsw:   devsw,
	}
	for b := uint64(0); b < n; b++ {
		ic.mu[b] = new(sync.Mutex)
		ic.slots[b] = make([]*Inode, param.NINODE)
		for i := range ic.slots[b] {
			ic.slots[b][i] = &Inode{
				bucket: b,
				lock:   sleeplock.MkSleeplock("inode"),
				ic:     ic,
				Dcache: dcache.MkDcache(),
			}
		}
	}
	return ic
}

func (ic *Icache) hash(dev uint32) uint64 {
	return uint64(dev) % ic.nbucket
}

func (ic *Icache) claim(ip *Inode, dev uint32, inum common.Inum) {
	ip.Dev = dev
	ip.Inum = inum
	ip.valid = false
	ip.Dcache.Reset()
	atomic.StoreInt32(&ip.ref, 1)
}

// Get finds the inode with number inum on device dev and returns the
// in-memory copy. It does not lock the inode and does not read it
// from disk.
func (ic *Icache) Get(dev uint32, inum common.Inum) *Inode {
	h := ic.hash(dev)
	ic.mu[h].Lock()
	var empty *Inode
	for _, ip := range ic.slots[h] {
		if ip.matches(dev, inum) && ip.incIfLive() {
			ic.mu[h].Unlock()
			return ip
		}
		if empty == nil && atomic.LoadInt32(&ip.ref) == 0 {
			empty = ip
		}
	}
	// With no live copy outside bucket h, a miss here is a miss
	// everywhere.
	if empty != nil && ic.foreign[h] == 0 {
		ic.claim(empty, dev, inum)
		ic.mu[h].Unlock()
		return empty
	}
	ic.mu[h].Unlock()
	return ic.getSlow(dev, inum, h)
}

// getSlow searches every bucket, holding all bucket locks, acquired in
// increasing order.
func (ic *Icache) getSlow(dev uint32, inum common.Inum, h uint64) *Inode {
	util.DPrintf(5, "iget: sweep for %d/%d\n", dev, inum)
	for b := uint64(0); b < ic.nbucket; b++ {
		ic.mu[b].Lock()
	}
	defer func() {
		for b := uint64(0); b < ic.nbucket; b++ {
			ic.mu[b].Unlock()
		}
	}()

	for b := range ic.foreign {
		ic.foreign[b] = 0
	}
	for b := uint64(0); b < ic.nbucket; b++ {
		for _, ip := range ic.slots[b] {
			if atomic.LoadInt32(&ip.ref) > 0 && ic.hash(ip.Dev) != b {
				ic.foreign[ic.hash(ip.Dev)] += 1
			}
		}
	}

	var empty *Inode
	for i := uint64(0); i < ic.nbucket; i++ {
		// start at the natural bucket so that a free slot there wins
		b := (h + i) % ic.nbucket
		for _, ip := range ic.slots[b] {
			if ip.matches(dev, inum) && ip.incIfLive() {
				return ip
			}
			if empty == nil && atomic.LoadInt32(&ip.ref) == 0 {
				empty = ip
			}
		}
	}
	if empty == nil {
		panic("iget: no inodes")
	}
	ic.claim(empty, dev, inum)
	if empty.bucket != h {
		ic.foreign[h] += 1
	}
	return empty
}

// Dup increments the reference count for ip and returns it.
func (ip *Inode) Dup() *Inode {
	atomic.AddInt32(&ip.ref, 1)
	return ip
}

// Lock locks ip, reading it from disk if necessary.
func (ip *Inode) Lock() {
	if ip == nil || atomic.LoadInt32(&ip.ref) < 1 {
		panic("ilock")
	}
	ip.lock.Acquire()
	if !ip.valid {
		ic := ip.ic
		b := ic.Bc.Bread(ip.Dev, ic.Sb.IBlock(ip.Inum))
		off := ic.Sb.IOff(ip.Inum)
		d := decodeDinode(b.Data[off : off+common.DINODESZ])
		ic.Bc.Brelse(b)
		ip.load(d)
		ip.valid = true
		if ip.Mode == 0 {
			panic("ilock: no mode")
		}
	}
}

func (ip *Inode) Unlock() {
	if ip == nil || !ip.lock.Holding() || atomic.LoadInt32(&ip.ref) < 1 {
		panic("iunlock")
	}
	ip.lock.Release()
}

// Put drops a reference to ip.  If that was the last reference and the
// inode has no links, the inode and its content are freed on disk, so
// Put must run inside a transaction.
func (ip *Inode) Put() {
	ic := ip.ic
	ip.lock.Acquire()
	if ip.valid && ip.Nlink == 0 {
		ic.mu[ip.bucket].Lock()
		r := atomic.LoadInt32(&ip.ref)
		ic.mu[ip.bucket].Unlock()
		if r == 1 {
			// no links and no other references: truncate and free.
			util.DPrintf(1, "iput: free %v\n", ip)
			ip.trunc()
			ip.Mode = 0
			ip.Update()
			ip.valid = false
		}
	}
	ip.lock.Release()
	if atomic.AddInt32(&ip.ref, -1) < 0 {
		panic("iput")
	}
}

func (ip *Inode) UnlockPut() {
	ip.Unlock()
	ip.Put()
}

// Holding reports whether ip's sleep-lock is held.
func (ip *Inode) Holding() bool {
	return ip.lock.Holding()
}

// Update copies a modified in-memory inode to disk, stamping fresh
// access and modify times. Caller must hold the lock and be inside a
// transaction.
func (ip *Inode) Update() {
	if !ip.lock.Holding() {
		panic("iupdate")
	}
	ic := ip.ic
	t := now()
	ip.Atime = t
	ip.Mtime = t
	b := ic.Bc.Bread(ip.Dev, ic.Sb.IBlock(ip.Inum))
	off := ic.Sb.IOff(ip.Inum)
	copy(b.Data[off:off+common.DINODESZ], ip.dinode().encode())
	ic.Log.Write(b)
	ic.Bc.Brelse(b)
}

// Ialloc allocates an inode on the cache's device, marking it in use
// with the given mode.  Returns an unlocked but allocated and
// referenced inode.
func (ic *Icache) Ialloc(mode uint32) *Inode {
	for inum := common.Inum(1); inum < common.Inum(ic.Sb.Ninodes); inum++ {
		b := ic.Bc.Bread(ic.Dev, ic.Sb.IBlock(inum))
		off := ic.Sb.IOff(inum)
		d := decodeDinode(b.Data[off : off+common.DINODESZ])
		if !common.IsAny(d.mode) {
			t := now()
			d = &dinode{
				mode:  mode,
				uid:   param.DEFAULT_UID,
				gid:   param.DEFAULT_GID,
				ctime: t,
				atime: t,
				mtime: t,
			}
			copy(b.Data[off:off+common.DINODESZ], d.encode())
			ic.Log.Write(b) // mark it allocated on the disk
			ic.Bc.Brelse(b)
			util.DPrintf(1, "ialloc: %d mode %o\n", inum, mode)
			return ic.Get(ic.Dev, inum)
		}
		ic.Bc.Brelse(b)
	}
	panic("ialloc: no inodes")
}

// Stat copies stat information from ip. Caller must hold the lock.
func (ip *Inode) Stat() common.Stat {
	return common.Stat{
		Dev:   ip.Dev,
		Ino:   ip.Inum,
		Nlink: ip.Nlink,
		Size:  ip.Size,
		Mode:  ip.Mode,
		Uid:   ip.Uid,
		Gid:   ip.Gid,
		Atime: ip.Atime,
		Ctime: ip.Ctime,
		Mtime: ip.Mtime,
	}
}

func (ip *Inode) IsDir() bool {
	return common.IsDir(ip.Mode)
}

func (ip *Inode) Icache() *Icache {
	return ip.ic
}
