package main

import (
	"context"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/common"
	ifs "github.com/mit-pdos/go-inodefs/fs"
	"github.com/mit-pdos/go-inodefs/proc"
)

// A node is a FUSE inode backed by the file at its path.  Every call
// runs as a short-lived process, so concurrent calls never share an
// open-file table.
type node struct {
	fs.Inode
	fsys *ifs.Fs
}

var _ = (fs.NodeStatfser)((*node)(nil))
var _ = (fs.NodeLookuper)((*node)(nil))
var _ = (fs.NodeGetattrer)((*node)(nil))
var _ = (fs.NodeSetattrer)((*node)(nil))
var _ = (fs.NodeReaddirer)((*node)(nil))
var _ = (fs.NodeOpener)((*node)(nil))
var _ = (fs.NodeReader)((*node)(nil))
var _ = (fs.NodeWriter)((*node)(nil))
var _ = (fs.NodeCreater)((*node)(nil))
var _ = (fs.NodeMkdirer)((*node)(nil))
var _ = (fs.NodeMknoder)((*node)(nil))
var _ = (fs.NodeUnlinker)((*node)(nil))
var _ = (fs.NodeRmdirer)((*node)(nil))
var _ = (fs.NodeLinker)((*node)(nil))
var _ = (fs.NodeSymlinker)((*node)(nil))
var _ = (fs.NodeReadlinker)((*node)(nil))

func (n *node) path() string {
	return "/" + n.Path(nil)
}

func (n *node) child(name string) string {
	return path.Join(n.path(), name)
}

func (n *node) run(f func(p *proc.Proc) error) syscall.Errno {
	p := n.fsys.NewProc()
	defer p.Exit()
	return fs.ToErrno(f(p))
}

func fillAttr(st common.Stat, out *fuse.Attr) {
	out.Ino = uint64(st.Ino)
	out.Size = uint64(st.Size)
	out.Blocks = (out.Size + 511) / 512
	out.Blksize = uint32(common.BSIZE)
	out.Mode = st.Mode
	out.Nlink = uint32(st.Nlink)
	out.Owner = fuse.Owner{Uid: uint32(st.Uid), Gid: uint32(st.Gid)}
	out.Atime = uint64(st.Atime)
	out.Mtime = uint64(st.Mtime)
	out.Ctime = uint64(st.Ctime)
}

// entry stats the new or found child name and returns its FUSE inode.
func (n *node) entry(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	var st common.Stat
	errno := n.run(func(p *proc.Proc) error {
		var err error
		st, err = p.Stat(n.child(name))
		return err
	})
	if errno != fs.OK {
		return nil, errno
	}
	fillAttr(st, &out.Attr)
	ch := n.NewInode(ctx, &node{fsys: n.fsys},
		fs.StableAttr{Mode: st.Mode & common.S_IFMT, Ino: uint64(st.Ino)})
	return ch, fs.OK
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	sb := n.fsys.Sb
	free := n.fsys.Alloc.NFree()
	out.Blocks = uint64(sb.Nblocks)
	out.Bfree = free
	out.Bavail = free
	out.Files = uint64(sb.Ninodes)
	out.Bsize = uint32(common.BSIZE)
	out.Frsize = uint32(common.BSIZE)
	out.NameLen = uint32(common.DIRSIZ)
	return fs.OK
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return n.entry(ctx, name, out)
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	return n.run(func(p *proc.Proc) error {
		st, err := p.Stat(n.path())
		if err == nil {
			fillAttr(st, &out.Attr)
		}
		return err
	})
}

// Setattr supports mode changes only; files cannot be truncated.
func (n *node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if _, ok := in.GetSize(); ok {
		return syscall.ENOTSUP
	}
	if mode, ok := in.GetMode(); ok {
		errno := n.run(func(p *proc.Proc) error {
			return p.Chmod(n.path(), mode)
		})
		if errno != fs.OK {
			return errno
		}
	}
	return n.Getattr(ctx, f, out)
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	var ents []fuse.DirEntry
	errno := n.run(func(p *proc.Proc) error {
		des, err := p.Readdir(n.path())
		if err != nil {
			return err
		}
		for _, de := range des {
			if de.Name == "." || de.Name == ".." {
				continue
			}
			st, err := p.Stat(n.child(de.Name))
			if err != nil {
				continue
			}
			ents = append(ents, fuse.DirEntry{Name: de.Name, Ino: uint64(de.Inum), Mode: st.Mode})
		}
		return nil
	})
	if errno != fs.OK {
		return nil, errno
	}
	return fs.NewListDirStream(ents), fs.OK
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	errno := n.run(func(p *proc.Proc) error {
		fd, err := p.Open(n.path(), int(flags)&unix.O_ACCMODE)
		if err != nil {
			return err
		}
		return p.Close(fd)
	})
	return nil, fuse.FOPEN_DIRECT_IO, errno
}

func (n *node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	var r uint64
	errno := n.run(func(p *proc.Proc) error {
		fd, err := p.Open(n.path(), unix.O_RDONLY)
		if err != nil {
			return err
		}
		defer p.Close(fd)
		if _, err := p.Lseek(fd, off, unix.SEEK_SET); err != nil {
			return err
		}
		r, err = p.Read(fd, dest)
		if err == unix.EDOM {
			// reading at or past the end
			r, err = 0, nil
		}
		return err
	})
	if errno != fs.OK {
		return nil, errno
	}
	return fuse.ReadResultData(dest[:r]), fs.OK
}

func (n *node) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	var w uint64
	errno := n.run(func(p *proc.Proc) error {
		fd, err := p.Open(n.path(), unix.O_WRONLY)
		if err != nil {
			return err
		}
		defer p.Close(fd)
		if _, err := p.Lseek(fd, off, unix.SEEK_SET); err != nil {
			return err
		}
		w, err = p.Write(fd, data)
		return err
	})
	return uint32(w), errno
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	errno := n.run(func(p *proc.Proc) error {
		fd, err := p.Open(n.child(name), unix.O_CREAT|unix.O_RDWR)
		if err != nil {
			return err
		}
		p.Close(fd)
		return p.Chmod(n.child(name), mode)
	})
	if errno != fs.OK {
		return nil, nil, 0, errno
	}
	ch, errno := n.entry(ctx, name, out)
	return ch, nil, fuse.FOPEN_DIRECT_IO, errno
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	errno := n.run(func(p *proc.Proc) error {
		if err := p.Mkdir(n.child(name)); err != nil {
			return err
		}
		return p.Chmod(n.child(name), mode)
	})
	if errno != fs.OK {
		return nil, errno
	}
	return n.entry(ctx, name, out)
}

// Mknod creates a device file; the major number is the high byte of
// rdev.
func (n *node) Mknod(ctx context.Context, name string, mode uint32, rdev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !common.IsDev(mode) {
		return nil, syscall.ENOTSUP
	}
	errno := n.run(func(p *proc.Proc) error {
		return p.Mknod(n.child(name), int16(unix.Major(uint64(rdev))), int16(unix.Minor(uint64(rdev))))
	})
	if errno != fs.OK {
		return nil, errno
	}
	return n.entry(ctx, name, out)
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return n.run(func(p *proc.Proc) error {
		return p.Unlink(n.child(name))
	})
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return n.Unlink(ctx, name)
}

func (n *node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	old := "/" + target.EmbeddedInode().Path(nil)
	errno := n.run(func(p *proc.Proc) error {
		return p.Link(old, n.child(name))
	})
	if errno != fs.OK {
		return nil, errno
	}
	return n.entry(ctx, name, out)
}

func (n *node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	errno := n.run(func(p *proc.Proc) error {
		return p.Symlink(target, n.child(name))
	})
	if errno != fs.OK {
		return nil, errno
	}
	return n.entry(ctx, name, out)
}

func (n *node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	var s string
	errno := n.run(func(p *proc.Proc) error {
		var err error
		s, err = p.Readlink(n.path())
		return err
	})
	return []byte(s), errno
}
