package proc

import (
	"io"
	"time"

	"github.com/mit-pdos/go-journal/util"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/file"
	"github.com/mit-pdos/go-inodefs/inode"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/util/stats"
	"github.com/mit-pdos/go-inodefs/wal"
)

const (
	OPEN = iota
	MKDIR
	MKNOD
	LINK
	UNLINK
	CHDIR
	SYMLINK
	READLINK
	CHMOD
	DUP
	READ
	WRITE
	CLOSE
	FSTAT
	LSEEK
	PIPE
	STAT
	READDIR
	WRITEV
	NOPS
)

var opNames = []string{
	"open", "mkdir", "mknod", "link", "unlink", "chdir", "symlink",
	"readlink", "chmod", "dup", "read", "write", "close", "fstat",
	"lseek", "pipe", "stat", "readdir", "writev",
}

// Sys is the file-system state shared by all processes.
type Sys struct {
	Icache *inode.Icache
	Log    *wal.Log
	Ftable *file.Ftable
	ops    [NOPS]stats.Op
}

func MkSys(ic *inode.Icache, log *wal.Log, ft *file.Ftable) *Sys {
	return &Sys{Icache: ic, Log: log, Ftable: ft}
}

func (sys *Sys) WriteOpStats(w io.Writer) {
	stats.WriteTable(opNames, sys.ops[:], w)
}

func (sys *Sys) ResetOpStats() {
	for i := range sys.ops {
		sys.ops[i].Reset()
	}
}

func (sys *Sys) record(op int, start time.Time) {
	sys.ops[op].Record(start)
}

// A Proc is the per-process state the system calls need: the current
// directory and the open-file table.
type Proc struct {
	sys   *Sys
	cwd   *inode.Inode
	ofile [param.NOFILE]*file.File
}

// MkProc starts a process in directory cwd, taking over the caller's
// reference.
func (sys *Sys) MkProc(cwd *inode.Inode) *Proc {
	return &Proc{sys: sys, cwd: cwd}
}

func (p *Proc) Cwd() *inode.Inode {
	return p.cwd
}

// fdalloc gives f a descriptor, taking over the caller's reference.
func (p *Proc) fdalloc(f *file.File) (int, error) {
	for fd := range p.ofile {
		if p.ofile[fd] == nil {
			p.ofile[fd] = f
			return fd, nil
		}
	}
	return -1, unix.EMFILE
}

func (p *Proc) argfd(fd int) (*file.File, error) {
	if fd < 0 || fd >= param.NOFILE || p.ofile[fd] == nil {
		return nil, unix.EBADF
	}
	return p.ofile[fd], nil
}

func (p *Proc) Dup(fd int) (int, error) {
	defer p.sys.record(DUP, time.Now())
	f, err := p.argfd(fd)
	if err != nil {
		return -1, err
	}
	nfd, err := p.fdalloc(f)
	if err != nil {
		return -1, err
	}
	p.sys.Ftable.Dup(f)
	return nfd, nil
}

func (p *Proc) Read(fd int, dst []byte) (uint64, error) {
	defer p.sys.record(READ, time.Now())
	f, err := p.argfd(fd)
	if err != nil {
		return 0, err
	}
	return p.sys.Ftable.Read(f, dst)
}

func (p *Proc) Write(fd int, src []byte) (uint64, error) {
	defer p.sys.record(WRITE, time.Now())
	f, err := p.argfd(fd)
	if err != nil {
		return 0, err
	}
	return p.sys.Ftable.Write(f, src)
}

// Writev writes each buffer of iov in turn, stopping at the first
// error, and returns the total written.
func (p *Proc) Writev(fd int, iov [][]byte) (uint64, error) {
	defer p.sys.record(WRITEV, time.Now())
	f, err := p.argfd(fd)
	if err != nil {
		return 0, err
	}
	var n uint64 = 0
	for _, src := range iov {
		m, err := p.sys.Ftable.Write(f, src)
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (p *Proc) Close(fd int) error {
	defer p.sys.record(CLOSE, time.Now())
	f, err := p.argfd(fd)
	if err != nil {
		return err
	}
	p.ofile[fd] = nil
	p.sys.Ftable.Close(f)
	return nil
}

func (p *Proc) Fstat(fd int) (common.Stat, error) {
	defer p.sys.record(FSTAT, time.Now())
	f, err := p.argfd(fd)
	if err != nil {
		return common.Stat{}, err
	}
	return p.sys.Ftable.Stat(f)
}

func (p *Proc) Lseek(fd int, off int64, whence int) (uint64, error) {
	defer p.sys.record(LSEEK, time.Now())
	f, err := p.argfd(fd)
	if err != nil {
		return 0, err
	}
	return p.sys.Ftable.Seek(f, off, whence)
}

// Pipe returns the read and write descriptors of a new pipe.
func (p *Proc) Pipe() (int, int, error) {
	defer p.sys.record(PIPE, time.Now())
	rf, wf, err := p.sys.Ftable.MkPipe()
	if err != nil {
		return -1, -1, err
	}
	fd0, err := p.fdalloc(rf)
	if err != nil {
		p.sys.Ftable.Close(rf)
		p.sys.Ftable.Close(wf)
		return -1, -1, err
	}
	fd1, err := p.fdalloc(wf)
	if err != nil {
		p.ofile[fd0] = nil
		p.sys.Ftable.Close(rf)
		p.sys.Ftable.Close(wf)
		return -1, -1, err
	}
	return fd0, fd1, nil
}

// Exit closes every open descriptor and drops the working directory.
func (p *Proc) Exit() {
	for fd := range p.ofile {
		if p.ofile[fd] != nil {
			f := p.ofile[fd]
			p.ofile[fd] = nil
			p.sys.Ftable.Close(f)
		}
	}
	p.sys.Log.BeginOp()
	p.cwd.Put()
	p.sys.Log.EndOp()
	p.cwd = nil
	util.DPrintf(5, "Exit\n")
}
