package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"

	"github.com/hanwen/go-fuse/v2/fs"

	"github.com/mit-pdos/go-journal/util"

	ifs "github.com/mit-pdos/go-inodefs/fs"
	"github.com/mit-pdos/go-inodefs/param"
)

func main() {
	var diskfile string
	flag.StringVar(&diskfile, "disk", "", "disk image made by mkfs (empty for a fresh MemDisk)")

	var nblocks uint64
	flag.Uint64Var(&nblocks, "size", param.FSSIZE, "size of a fresh MemDisk (in blocks)")

	var dumpStats bool
	flag.BoolVar(&dumpStats, "stats", false, "dump stats to stderr at end")

	fuseDebug := flag.Bool("fuse-debug", false, "log FUSE requests")
	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Printf("usage: %s [options] <mountpoint>\n", path.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	if diskfile != "" {
		n, err := ifs.ImageBlocks(diskfile)
		if err != nil {
			log.Fatal(err)
		}
		nblocks = n
	}
	d, err := ifs.OpenDisk(diskfile, nblocks)
	if err != nil {
		log.Fatal(err)
	}
	if diskfile == "" {
		ifs.Mkfs(d, param.NINODES)
	}
	cfg := ifs.DefaultConfig()
	cfg.TimeDisk = dumpStats
	fsys := ifs.Mount(d, cfg)

	options := &fs.Options{}
	options.Debug = *fuseDebug
	options.MountOptions.Options = append(options.MountOptions.Options, "fsname=inodefs")
	options.NullPermissions = true

	server, err := fs.Mount(flag.Arg(0), &node{fsys: fsys}, options)
	if err != nil {
		log.Fatalf("mount failed: %v\n", err)
	}

	interruptSig := make(chan os.Signal, 1)
	signal.Notify(interruptSig, os.Interrupt)
	go func() {
		<-interruptSig
		util.DPrintf(1, "unmounting %s\n", flag.Arg(0))
		server.Unmount()
	}()

	server.Wait()
	if dumpStats {
		fsys.WriteOpStats(os.Stderr)
	}
	fsys.Shutdown()
}
