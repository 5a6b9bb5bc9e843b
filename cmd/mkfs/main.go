package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/fs"
	"github.com/mit-pdos/go-inodefs/param"
)

func main() {
	var diskfile string
	flag.StringVar(&diskfile, "disk", "", "disk image to create")

	var nblocks uint64
	flag.Uint64Var(&nblocks, "size", param.FSSIZE, "size of file system (in blocks)")

	var ninodes uint
	flag.UintVar(&ninodes, "ninodes", uint(param.NINODES), "number of inodes")

	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	flag.Parse()

	if diskfile == "" {
		fmt.Fprintf(os.Stderr, "usage: mkfs -disk <image> [-size blocks] [-ninodes n]\n")
		os.Exit(2)
	}

	d, err := fs.OpenDisk(diskfile, nblocks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fs.Mkfs(d, uint32(ninodes))
	d.Close()
	fmt.Printf("mkfs: %s: %d blocks, %d inodes\n", diskfile, nblocks, ninodes)
}
