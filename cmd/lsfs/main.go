package main

import (
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/mit-pdos/go-journal/util"
	"github.com/rodaine/table"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/dir"
	"github.com/mit-pdos/go-inodefs/fs"
	"github.com/mit-pdos/go-inodefs/inode"
	"github.com/mit-pdos/go-inodefs/namei"
)

func kind(mode uint32) string {
	switch {
	case common.IsDir(mode):
		return "dir"
	case common.IsReg(mode):
		return "file"
	case common.IsLnk(mode):
		return "symlink"
	case common.IsDev(mode):
		return "dev"
	}
	return "?"
}

type ent struct {
	name string
	inum common.Inum
}

func list(ic *inode.Icache, tbl table.Table, prefix string, dp *inode.Inode, recursive bool) {
	var ents []ent
	dp.Lock()
	dir.Apply(dp, func(name string, inum common.Inum, off uint64) {
		ents = append(ents, ent{name, inum})
	})
	dp.Unlock()

	for _, e := range ents {
		ip := ic.Get(dp.Dev, e.inum)
		ip.Lock()
		st := ip.Stat()
		ip.Unlock()
		p := path.Join(prefix, e.name)
		tbl.AddRow(p, st.Ino, kind(st.Mode), fmt.Sprintf("%o", st.Mode&^common.S_IFMT),
			st.Nlink, st.Size)
		if recursive && common.IsDir(st.Mode) && e.name != "." && e.name != ".." {
			list(ic, tbl, p, ip, recursive)
		}
		ip.Put()
	}
}

func main() {
	var diskfile string
	flag.StringVar(&diskfile, "disk", "", "disk image to list")

	var root string
	flag.StringVar(&root, "path", "/", "directory to list")

	var recursive bool
	flag.BoolVar(&recursive, "r", false, "list subdirectories")

	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	flag.Parse()

	if diskfile == "" {
		fmt.Fprintf(os.Stderr, "usage: lsfs -disk <image> [-path dir] [-r]\n")
		os.Exit(2)
	}
	nblocks, err := fs.ImageBlocks(diskfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	d, err := fs.OpenDisk(diskfile, nblocks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	f := fs.Mount(d, fs.DefaultConfig())
	defer f.Shutdown()
	fmt.Printf("%v\n", f.Sb)
	fmt.Printf("free blocks: %d\n", f.Alloc.NFree())

	p := f.NewProc()
	defer p.Exit()

	// Put may free an orphaned inode, which needs a transaction.
	f.Log.BeginOp()
	defer f.Log.EndOp()
	dp, err := namei.Namei(f.Icache, p, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", root, err)
		os.Exit(1)
	}
	dp.Lock()
	isDir := dp.IsDir()
	dp.Unlock()
	if !isDir {
		dp.Put()
		fmt.Fprintf(os.Stderr, "%s: not a directory\n", root)
		os.Exit(1)
	}

	tbl := table.New("path", "inum", "type", "perm", "nlink", "size")
	list(f.Icache, tbl, root, dp, recursive)
	dp.Put()
	tbl.Print()
}
