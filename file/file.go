// Package file implements open-file handles: reference-counted
// entries in a system-wide table, each naming a pipe or an inode.
package file

import (
	"sync"

	"github.com/mit-pdos/go-journal/lockmap"
	"github.com/mit-pdos/go-journal/util"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/inode"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/pipe"
	"github.com/mit-pdos/go-inodefs/wal"
)

type FdType uint64

const (
	FD_NONE FdType = iota
	FD_PIPE
	FD_INODE
)

// Bytes written per transaction: the log budget less the inode, an
// indirect block, the bitmap and 2 blocks of slop for non-aligned
// writes, halved since a data block may need a fresh indirect block.
const MAXWRITE uint64 = ((param.MAXOPBLOCKS - 1 - 1 - 2) / 2) * common.BSIZE

type File struct {
	Type     FdType
	ref      uint64
	Readable bool
	Writable bool
	Pipe     *pipe.Pipe
	Ip       *inode.Inode
	off      uint64 // protected by Ip's lock
}

type Ftable struct {
	mu    *sync.Mutex
	files []File
	log   *wal.Log
	locks *lockmap.LockMap // serializes chunked writes per inode
}

func MkFtable(log *wal.Log) *Ftable {
	return &Ftable{
		mu:    new(sync.Mutex),
		files: make([]File, param.NFILE),
		log:   log,
		locks: lockmap.MkLockMap(),
	}
}

// Alloc claims an unused file handle.
func (ft *Ftable) Alloc() (*File, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	for i := range ft.files {
		f := &ft.files[i]
		if f.ref == 0 {
			f.ref = 1
			return f, nil
		}
	}
	return nil, unix.ENFILE
}

// Dup increments the reference count for f.
func (ft *Ftable) Dup(f *File) *File {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if f.ref < 1 {
		panic("filedup")
	}
	f.ref++
	return f
}

// Close decrements f's reference count and releases what it names
// when the count reaches zero.
func (ft *Ftable) Close(f *File) {
	ft.mu.Lock()
	if f.ref < 1 {
		ft.mu.Unlock()
		panic("fileclose")
	}
	f.ref--
	if f.ref > 0 {
		ft.mu.Unlock()
		return
	}
	ff := *f
	f.Type = FD_NONE
	f.Pipe = nil
	f.Ip = nil
	f.off = 0
	ft.mu.Unlock()

	switch ff.Type {
	case FD_PIPE:
		ff.Pipe.Close(ff.Writable)
	case FD_INODE:
		ft.log.BeginOp()
		ff.Ip.Put()
		ft.log.EndOp()
	}
}

// Stat returns metadata about f.
func (ft *Ftable) Stat(f *File) (common.Stat, error) {
	if f.Type == FD_INODE {
		f.Ip.Lock()
		st := f.Ip.Stat()
		f.Ip.Unlock()
		return st, nil
	}
	return common.Stat{}, unix.ENOENT
}

// Read reads from f into dst at f's offset.
func (ft *Ftable) Read(f *File, dst []byte) (uint64, error) {
	if !f.Readable {
		return 0, unix.EINVAL
	}
	switch f.Type {
	case FD_PIPE:
		return f.Pipe.Read(dst)
	case FD_INODE:
		f.Ip.Lock()
		n, err := f.Ip.Read(dst, f.off)
		if err == nil {
			f.off += n
		}
		f.Ip.Unlock()
		return n, err
	}
	panic("fileread")
}

func lockKey(ip *inode.Inode) uint64 {
	return uint64(ip.Dev)<<32 | uint64(ip.Inum)
}

// Write writes src to f.  Inode writes are split into MAXWRITE-byte
// chunks, one transaction each; a crash can leave any prefix of
// whole chunks on disk.
func (ft *Ftable) Write(f *File, src []byte) (uint64, error) {
	if !f.Writable {
		return 0, unix.EROFS
	}
	switch f.Type {
	case FD_PIPE:
		return f.Pipe.Write(src)
	case FD_INODE:
		ip := f.Ip
		n := uint64(len(src))
		k := lockKey(ip)
		ft.locks.Acquire(k)
		defer ft.locks.Release(k)
		var i uint64 = 0
		for i < n {
			n1 := util.Min(n-i, MAXWRITE)
			ft.log.BeginOp()
			ip.Lock()
			r, err := ip.Write(src[i:i+n1], f.off)
			if err == nil {
				f.off += r
			}
			ip.Unlock()
			ft.log.EndOp()
			if err != nil {
				return i, err
			}
			if r != n1 {
				panic("short filewrite")
			}
			i += r
		}
		return n, nil
	}
	panic("filewrite")
}

// Seek sets f's offset relative to whence (unix.SEEK_SET, SEEK_CUR or
// SEEK_END) and returns the new offset.
func (ft *Ftable) Seek(f *File, off int64, whence int) (uint64, error) {
	if f.Type != FD_INODE {
		return 0, unix.ESPIPE
	}
	f.Ip.Lock()
	defer f.Ip.Unlock()
	var base int64
	switch whence {
	case unix.SEEK_SET:
		base = 0
	case unix.SEEK_CUR:
		base = int64(f.off)
	case unix.SEEK_END:
		base = int64(f.Ip.Size)
	default:
		return 0, unix.EINVAL
	}
	if base+off < 0 {
		return 0, unix.EINVAL
	}
	f.off = uint64(base + off)
	return f.off, nil
}

// MkPipe allocates the read and write handles of a new pipe.
func (ft *Ftable) MkPipe() (*File, *File, error) {
	rf, err := ft.Alloc()
	if err != nil {
		return nil, nil, err
	}
	wf, err := ft.Alloc()
	if err != nil {
		ft.Close(rf)
		return nil, nil, err
	}
	p := pipe.MkPipe()
	rf.Type = FD_PIPE
	rf.Readable = true
	rf.Writable = false
	rf.Pipe = p
	wf.Type = FD_PIPE
	wf.Readable = false
	wf.Writable = true
	wf.Pipe = p
	return rf, wf, nil
}
