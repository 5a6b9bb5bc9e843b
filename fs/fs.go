package fs

import (
	"fmt"
	"io"
	"os"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-inodefs/balloc"
	"github.com/mit-pdos/go-inodefs/bcache"
	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/devices"
	"github.com/mit-pdos/go-inodefs/dir"
	"github.com/mit-pdos/go-inodefs/file"
	"github.com/mit-pdos/go-inodefs/inode"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/proc"
	"github.com/mit-pdos/go-inodefs/super"
	"github.com/mit-pdos/go-inodefs/util/timed_disk"
	"github.com/mit-pdos/go-inodefs/wal"
)

type Config struct {
	Ncpu      uint64    // cores sharing the inode cache
	Dev       uint32    // device number of the mounted disk
	TimeDisk  bool      // record disk latencies
	ConsoleIn io.Reader // console device input, may be nil
	Console   io.Writer // console device output
}

func DefaultConfig() Config {
	return Config{
		Ncpu:     param.NCPU,
		Dev:      param.ROOTDEV,
		TimeDisk: false,
		Console:  os.Stdout,
	}
}

type Fs struct {
	cfg    Config
	disk   disk.Disk
	timed  *timed_disk.Disk
	Sb     *super.Superblock
	Bc     *bcache.Bcache
	Log    *wal.Log
	Alloc  *balloc.Alloc
	Devsw  *inode.Devsw
	Icache *inode.Icache
	Ftable *file.Ftable
	Sys    *proc.Sys
}

// OpenDisk opens the disk image at path with nblocks blocks, or a
// fresh in-memory disk when path is empty.
func OpenDisk(path string, nblocks uint64) (disk.Disk, error) {
	if path == "" {
		return disk.NewMemDisk(nblocks), nil
	}
	d, err := disk.NewFileDisk(path, nblocks)
	if err != nil {
		return nil, fmt.Errorf("could not create disk: %w", err)
	}
	return d, nil
}

// ImageBlocks returns the size in blocks of the disk image at path.
func ImageBlocks(path string) (uint64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(st.Size()) / disk.BlockSize, nil
}

// Mkfs writes an empty file system with ninodes inodes to d, with a
// root directory as inode ROOTINO.
func Mkfs(d disk.Disk, ninodes uint32) {
	sb := super.MkSuperblock(d.Size(), ninodes)
	util.DPrintf(1, "Mkfs: %v\n", sb)
	zero := make(disk.Block, disk.BlockSize)
	for bn := uint64(0); bn < uint64(sb.DataStart()); bn++ {
		d.Write(bn, zero)
	}
	super.WriteSuper(d, sb)

	// metadata blocks are never handed out
	for bn := common.Bnum(0); bn < sb.DataStart(); bn++ {
		blkno := sb.BBlock(bn)
		blk := d.Read(blkno)
		bi := uint64(bn) % common.BPB
		blk[bi/8] |= 1 << (bi % 8)
		d.Write(blkno, blk)
	}
	d.Barrier()

	fs := mount(d, DefaultConfig())
	fs.Log.BeginOp()
	root := fs.Icache.Ialloc(common.S_IFDIR | common.S_IRWXU)
	if root.Inum != common.ROOTINO {
		panic("Mkfs: root")
	}
	root.Lock()
	root.Nlink = 1
	root.Update()
	if dir.InitDir(root, root.Inum) != nil {
		panic("Mkfs: root dots")
	}
	root.UnlockPut()
	fs.Log.EndOp()
	d.Barrier()
}

func mount(d disk.Disk, cfg Config) *Fs {
	fs := &Fs{cfg: cfg, disk: d}
	if cfg.TimeDisk {
		fs.timed = timed_disk.New(fmt.Sprintf("dev%d", cfg.Dev), d)
		fs.disk = fs.timed
	}
	fs.Sb = super.ReadSuper(fs.disk)
	fs.Bc = bcache.MkBcache(param.NBUF)
	fs.Bc.Attach(cfg.Dev, fs.disk)
	fs.Log = wal.MkLog(fs.Bc, cfg.Dev, fs.Sb)
	fs.Log.Recover()
	fs.Alloc = balloc.MkAlloc(fs.Bc, fs.Log, fs.Sb, cfg.Dev)
	fs.Devsw = inode.MkDevsw()
	if cfg.Console != nil {
		fs.Devsw.Register(param.CONSOLE, devices.MkConsole(cfg.ConsoleIn, cfg.Console))
	}
	fs.Devsw.Register(param.NULLDEV, devices.Null{})
	fs.Icache = inode.MkIcache(cfg.Ncpu, cfg.Dev, fs.Sb, fs.Bc, fs.Log, fs.Alloc, fs.Devsw)
	fs.Ftable = file.MkFtable(fs.Log)
	fs.Sys = proc.MkSys(fs.Icache, fs.Log, fs.Ftable)
	return fs
}

// Mount reads the superblock of d, recovers its log and wires up the
// file system.
func Mount(d disk.Disk, cfg Config) *Fs {
	fs := mount(d, cfg)
	util.DPrintf(1, "sb: %v\n", fs.Sb)
	return fs
}

// NewProc starts a process in the root directory.
func (fs *Fs) NewProc() *proc.Proc {
	return fs.Sys.MkProc(fs.Icache.Get(fs.cfg.Dev, common.ROOTINO))
}

func (fs *Fs) Disk() disk.Disk {
	return fs.disk
}

func (fs *Fs) WriteOpStats(w io.Writer) {
	fs.Sys.WriteOpStats(w)
	if fs.timed != nil {
		fs.timed.WriteStats(w)
	}
}

func (fs *Fs) ResetStats() {
	fs.Sys.ResetOpStats()
	if fs.timed != nil {
		fs.timed.ResetStats()
	}
}

// Shutdown flushes the disk and closes it.
func (fs *Fs) Shutdown() {
	fs.Bc.Barrier(fs.cfg.Dev)
	fs.disk.Close()
}
