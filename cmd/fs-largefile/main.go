package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mit-pdos/go-journal/util"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/fs"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/proc"
)

const (
	MB    uint64 = 1024 * 1024
	WSIZE        = 16 * 4096
)

var FILESIZE uint64

func makefile(p *proc.Proc, name string, data []byte) {
	fd, err := p.Open(name, unix.O_CREAT|unix.O_RDWR)
	if err != nil {
		panic(err)
	}
	for i := uint64(0); i < FILESIZE/WSIZE; i++ {
		_, err = p.Write(fd, data)
		if err != nil {
			panic(err)
		}
	}
	err = p.Close(fd)
	if err != nil {
		panic(err)
	}
}

func mkdata(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

func main() {
	sizeMB := flag.Uint64("size", 100, "file size (in MB)")
	deleteAfter := flag.Bool("delete", false, "delete files after running benchmark")

	var diskfile string
	flag.StringVar(&diskfile, "disk", "", "disk image (empty for MemDisk)")

	var dumpStats bool
	flag.BoolVar(&dumpStats, "stats", false, "dump stats to stderr at end")

	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	flag.Parse()

	FILESIZE = *sizeMB * MB
	if FILESIZE > common.MaxFileSize() {
		fmt.Fprintf(os.Stderr, "fs-largefile: %d MB is larger than a file can be\n", *sizeMB)
		os.Exit(1)
	}

	// room for two files and their indirect blocks
	diskBlocks := 1500 + 2*(FILESIZE/common.BSIZE)*(common.NINDIRECT+1)/common.NINDIRECT
	d, err := fs.OpenDisk(diskfile, diskBlocks)
	if err != nil {
		panic(err)
	}
	fs.Mkfs(d, param.NINODES)
	cfg := fs.DefaultConfig()
	cfg.TimeDisk = dumpStats
	f := fs.Mount(d, cfg)
	defer f.Shutdown()
	p := f.NewProc()
	defer p.Exit()

	data := mkdata(WSIZE)
	makefile(p, "/large.warmup", data)
	f.ResetStats()
	start := time.Now()
	makefile(p, "/large", data)
	elapsed := time.Now().Sub(start)
	tput := float64(FILESIZE/MB) / elapsed.Seconds()
	fmt.Printf("fs-largefile: %v MB throughput %.2f MB/s\n", FILESIZE/MB, tput)

	if *deleteAfter {
		p.Unlink("/large.warmup")
		p.Unlink("/large")
	}
	if dumpStats {
		f.WriteOpStats(os.Stderr)
	}
}
