package proc

import (
	"time"

	"github.com/mit-pdos/go-journal/util"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/dir"
	"github.com/mit-pdos/go-inodefs/file"
	"github.com/mit-pdos/go-inodefs/inode"
	"github.com/mit-pdos/go-inodefs/namei"
	"github.com/mit-pdos/go-inodefs/param"
)

//
// File-system system calls.  Path arguments are Go strings; the
// argument checking of a real kernel is out of scope.  Every call
// that may drop an inode reference runs inside a transaction.
//

func (p *Proc) namei(path string) (*inode.Inode, error) {
	return namei.Namei(p.sys.Icache, p, path)
}

func (p *Proc) nameiparent(path string) (*inode.Inode, string, error) {
	return namei.NameiParent(p.sys.Icache, p, path)
}

// create makes a new inode at path with the given mode and returns it
// locked.  An existing regular file or symlink is returned instead
// when mode asks for the same type, and an existing device file when
// mode asks for a regular file.
func (p *Proc) create(path string, mode uint32, major int16, minor int16) (*inode.Inode, error) {
	dp, name, err := p.nameiparent(path)
	if err != nil {
		return nil, err
	}
	dp.Lock()

	ip, _, ok := dir.Lookup(dp, name)
	if ok {
		dp.UnlockPut()
		ip.Lock()
		if common.IsReg(ip.Mode) && common.IsReg(mode) {
			return ip, nil
		}
		if common.IsLnk(ip.Mode) && common.IsLnk(mode) {
			return ip, nil
		}
		// O_CREAT on an existing device file opens the device
		if common.IsDev(ip.Mode) && common.IsReg(mode) {
			return ip, nil
		}
		ip.UnlockPut()
		return nil, unix.EEXIST
	}

	ip = p.sys.Icache.Ialloc(mode)
	ip.Lock()
	ip.Major = major
	ip.Minor = minor
	ip.Nlink = 1
	ip.Update()

	if common.IsDir(mode) {
		dp.Nlink++ // for ".."
		dp.Update()
		// No ip.Nlink++ for ".": avoid cyclic ref count.
		if dir.InitDir(ip, dp.Inum) != nil {
			panic("create dots")
		}
	}

	if dir.Link(dp, name, ip.Inum) != nil {
		panic("create: dirlink")
	}
	dp.UnlockPut()
	return ip, nil
}

// deref follows symbolic links from the locked inode ip, returning the
// locked target.  On error ip has been released.
func (p *Proc) deref(ip *inode.Inode) (*inode.Inode, error) {
	for n := 0; common.IsLnk(ip.Mode); n++ {
		if n >= param.NLINK_DEREF {
			ip.UnlockPut()
			return nil, unix.ELOOP
		}
		target, err := readTarget(ip)
		ip.UnlockPut()
		if err != nil {
			return nil, err
		}
		ip, err = p.namei(target)
		if err != nil {
			return nil, err
		}
		ip.Lock()
	}
	return ip, nil
}

func readTarget(ip *inode.Inode) (string, error) {
	buf := make([]byte, ip.Size)
	n, err := ip.Read(buf, 0)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Open opens path with the given unix.O_* flags and returns a
// descriptor.
func (p *Proc) Open(path string, omode int) (int, error) {
	defer p.sys.record(OPEN, time.Now())
	log := p.sys.Log
	log.BeginOp()

	var ip *inode.Inode
	var err error
	if omode&unix.O_CREAT != 0 {
		ip, err = p.create(path, common.S_IFREG|common.S_IRWXU, 0, 0)
		if err != nil {
			log.EndOp()
			return -1, err
		}
	} else {
		ip, err = p.namei(path)
		if err != nil {
			log.EndOp()
			return -1, err
		}
		ip.Lock()
		ip, err = p.deref(ip)
		if err != nil {
			log.EndOp()
			return -1, err
		}
	}
	if ip.IsDir() && omode&unix.O_ACCMODE != unix.O_RDONLY {
		ip.UnlockPut()
		log.EndOp()
		return -1, unix.EISDIR
	}

	f, err := p.sys.Ftable.Alloc()
	if err != nil {
		ip.UnlockPut()
		log.EndOp()
		return -1, err
	}
	fd, err := p.fdalloc(f)
	if err != nil {
		p.sys.Ftable.Close(f)
		ip.UnlockPut()
		log.EndOp()
		return -1, err
	}
	ip.Unlock()
	log.EndOp()

	f.Type = file.FD_INODE
	f.Ip = ip
	f.Readable = omode&unix.O_ACCMODE != unix.O_WRONLY
	f.Writable = omode&unix.O_ACCMODE == unix.O_WRONLY || omode&unix.O_ACCMODE == unix.O_RDWR
	util.DPrintf(5, "Open %s -> fd %d inum %d\n", path, fd, ip.Inum)
	return fd, nil
}

func (p *Proc) mk(path string, mode uint32, major int16, minor int16) error {
	p.sys.Log.BeginOp()
	defer p.sys.Log.EndOp()
	ip, err := p.create(path, mode, major, minor)
	if err != nil {
		return err
	}
	ip.UnlockPut()
	return nil
}

func (p *Proc) Mkdir(path string) error {
	defer p.sys.record(MKDIR, time.Now())
	return p.mk(path, common.S_IFDIR|common.S_IRWXU, 0, 0)
}

// Mknod creates a device file served by the handler registered under
// major.
func (p *Proc) Mknod(path string, major int16, minor int16) error {
	defer p.sys.record(MKNOD, time.Now())
	return p.mk(path, common.S_IFBLK|common.S_IRWXU, major, minor)
}

// Link creates newpath as a link to the same inode as oldpath.
func (p *Proc) Link(oldpath string, newpath string) error {
	defer p.sys.record(LINK, time.Now())
	log := p.sys.Log
	log.BeginOp()
	defer log.EndOp()

	ip, err := p.namei(oldpath)
	if err != nil {
		return err
	}
	ip.Lock()
	if ip.IsDir() {
		ip.UnlockPut()
		return unix.EISDIR
	}
	ip.Nlink++
	ip.Update()
	ip.Unlock()

	dp, name, err := p.nameiparent(newpath)
	if err == nil {
		dp.Lock()
		if dp.Dev != ip.Dev {
			err = unix.EXDEV
		} else {
			err = dir.Link(dp, name, ip.Inum)
		}
		dp.UnlockPut()
	}
	if err != nil {
		ip.Lock()
		ip.Nlink--
		ip.Update()
		ip.UnlockPut()
		return err
	}
	ip.Put()
	return nil
}

func (p *Proc) Unlink(path string) error {
	defer p.sys.record(UNLINK, time.Now())
	log := p.sys.Log
	log.BeginOp()
	defer log.EndOp()

	dp, name, err := p.nameiparent(path)
	if err != nil {
		return err
	}
	dp.Lock()

	// Cannot unlink "." or "..".
	if name == "." || name == ".." {
		dp.UnlockPut()
		return unix.EINVAL
	}
	ip, off, ok := dir.Lookup(dp, name)
	if !ok {
		dp.UnlockPut()
		return unix.ENOENT
	}
	ip.Lock()
	if ip.Nlink < 1 {
		panic("unlink: nlink < 1")
	}
	if ip.IsDir() && !dir.IsEmpty(ip) {
		ip.UnlockPut()
		dp.UnlockPut()
		return unix.ENOTEMPTY
	}

	dir.Unlink(dp, off)
	if ip.IsDir() {
		dp.Nlink--
		dp.Update()
	}
	dp.UnlockPut()

	ip.Nlink--
	ip.Update()
	ip.UnlockPut()
	return nil
}

func (p *Proc) Chdir(path string) error {
	defer p.sys.record(CHDIR, time.Now())
	log := p.sys.Log
	log.BeginOp()
	defer log.EndOp()

	ip, err := p.namei(path)
	if err != nil {
		return err
	}
	ip.Lock()
	ip, err = p.deref(ip)
	if err != nil {
		return err
	}
	if !ip.IsDir() {
		ip.UnlockPut()
		return unix.ENOTDIR
	}
	ip.Unlock()
	p.cwd.Put()
	p.cwd = ip
	return nil
}

// Symlink creates linkpath as a symbolic link holding target.
func (p *Proc) Symlink(target string, linkpath string) error {
	defer p.sys.record(SYMLINK, time.Now())
	log := p.sys.Log
	log.BeginOp()
	defer log.EndOp()

	if uint64(len(target)) > param.MAXPATH {
		return unix.ENAMETOOLONG
	}
	if ip, err := p.namei(linkpath); err == nil {
		ip.Put()
		return unix.EEXIST
	}
	ip, err := p.create(linkpath, common.S_IFLNK|common.S_IRWXU, 0, 0)
	if err != nil {
		return err
	}
	n, err := ip.Write([]byte(target), 0)
	if err != nil || n != uint64(len(target)) {
		panic("symlink write")
	}
	ip.UnlockPut()
	return nil
}

func (p *Proc) Readlink(path string) (string, error) {
	defer p.sys.record(READLINK, time.Now())
	log := p.sys.Log
	log.BeginOp()
	defer log.EndOp()

	ip, err := p.namei(path)
	if err != nil {
		return "", err
	}
	ip.Lock()
	defer ip.UnlockPut()
	if !common.IsLnk(ip.Mode) {
		return "", unix.EINVAL
	}
	return readTarget(ip)
}

// Chmod replaces the permission bits of path, keeping its file type.
func (p *Proc) Chmod(path string, mode uint32) error {
	defer p.sys.record(CHMOD, time.Now())
	log := p.sys.Log
	log.BeginOp()
	defer log.EndOp()

	ip, err := p.namei(path)
	if err != nil {
		return err
	}
	ip.Lock()
	ip.Mode = (ip.Mode & common.S_IFMT) | (mode &^ common.S_IFMT)
	ip.Update()
	ip.UnlockPut()
	return nil
}

// Stat returns metadata about path itself; a final symlink is not
// followed.
func (p *Proc) Stat(path string) (common.Stat, error) {
	defer p.sys.record(STAT, time.Now())
	log := p.sys.Log
	log.BeginOp()
	defer log.EndOp()

	ip, err := p.namei(path)
	if err != nil {
		return common.Stat{}, err
	}
	ip.Lock()
	st := ip.Stat()
	ip.UnlockPut()
	return st, nil
}

type Dirent struct {
	Name string
	Inum common.Inum
}

// Readdir lists the live entries of directory path, "." and ".."
// included.
func (p *Proc) Readdir(path string) ([]Dirent, error) {
	defer p.sys.record(READDIR, time.Now())
	log := p.sys.Log
	log.BeginOp()
	defer log.EndOp()

	ip, err := p.namei(path)
	if err != nil {
		return nil, err
	}
	ip.Lock()
	ip, err = p.deref(ip)
	if err != nil {
		return nil, err
	}
	defer ip.UnlockPut()
	if !ip.IsDir() {
		return nil, unix.ENOTDIR
	}
	var ents []Dirent
	dir.Apply(ip, func(name string, inum common.Inum, off uint64) {
		ents = append(ents, Dirent{Name: name, Inum: inum})
	})
	return ents, nil
}
