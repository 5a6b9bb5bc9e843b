package namei

import (
	"github.com/mit-pdos/go-journal/util"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/dir"
	"github.com/mit-pdos/go-inodefs/inode"
)

// Process supplies the working directory for relative paths.
type Process interface {
	Cwd() *inode.Inode
}

// SkipElem splits off the first element of path. The returned rest
// has no leading slashes, so rest == "" means name was the last
// element.  Long names are cut to DIRSIZ.  It returns false if path
// has no element.
//
//   SkipElem("a/bb/c") = "a", "bb/c"
//   SkipElem("///a//bb") = "a", "bb"
//   SkipElem("a") = "a", ""
//   SkipElem("") = SkipElem("////") = false
func SkipElem(path string) (string, string, bool) {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	if i == len(path) {
		return "", "", false
	}
	s := i
	for i < len(path) && path[i] != '/' {
		i++
	}
	name := dir.TruncName(path[s:i])
	for i < len(path) && path[i] == '/' {
		i++
	}
	return name, path[i:], true
}

// resolve looks up path, stopping one level early if parent is set.
// Every inode it drops is released with Put, so callers must be inside
// a transaction.
func resolve(ic *inode.Icache, p Process, path string, parent bool) (*inode.Inode, string, error) {
	var ip *inode.Inode
	if len(path) > 0 && path[0] == '/' {
		ip = ic.Get(ic.Dev, common.ROOTINO)
	} else {
		ip = p.Cwd().Dup()
	}

	var name string
	rest := path
	for {
		var ok bool
		name, rest, ok = SkipElem(rest)
		if !ok {
			break
		}
		ip.Lock()
		if !ip.IsDir() {
			ip.UnlockPut()
			return nil, "", unix.ENOENT
		}
		if parent && rest == "" {
			// stop one level early
			ip.Unlock()
			return ip, name, nil
		}
		next, _, found := dir.Lookup(ip, name)
		if !found {
			ip.UnlockPut()
			return nil, "", unix.ENOENT
		}
		ip.UnlockPut()
		ip = next
	}
	if parent {
		ip.Put()
		return nil, "", unix.ENOENT
	}
	util.DPrintf(10, "resolve %s -> %v\n", path, ip.Inum)
	return ip, name, nil
}

// Namei returns the unlocked, referenced inode for path.
func Namei(ic *inode.Icache, p Process, path string) (*inode.Inode, error) {
	ip, _, err := resolve(ic, p, path, false)
	return ip, err
}

// NameiParent returns the unlocked, referenced inode of the directory
// holding the last element of path, along with that element.
func NameiParent(ic *inode.Icache, p Process, path string) (*inode.Inode, string, error) {
	return resolve(ic, p, path, true)
}
