package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/fs"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/proc"
)

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
var nthread = flag.Int("threads", 4, "number of threads to run till")

func main() {
	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	flag.Parse()
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}
	PLookup()
}

// Parallel runs f in nt processes of a fresh file system and sums
// their results.
func Parallel(nt int, f func(p *proc.Proc) int) int {
	d := disk.NewMemDisk(param.FSSIZE)
	fs.Mkfs(d, param.NINODES)
	fsys := fs.Mount(d, fs.DefaultConfig())
	defer fsys.Shutdown()

	count := make(chan int)
	for i := 0; i < nt; i++ {
		go func() {
			p := fsys.NewProc()
			defer p.Exit()
			count <- f(p)
		}()
	}
	n := 0
	for i := 0; i < nt; i++ {
		n += <-count
	}
	return n
}

func Lookup(p *proc.Proc, name string) {
	fd, err := p.Open(name, unix.O_RDONLY)
	if err != nil {
		panic("Lookup")
	}
	if _, err := p.Fstat(fd); err != nil {
		panic("Lookup")
	}
	p.Close(fd)
}

func PLookup() {
	const N = 1 * time.Second
	for i := 1; i <= *nthread; i++ {
		s := strconv.Itoa(i)
		res := Parallel(i,
			func(p *proc.Proc) int {
				fd, err := p.Open("/x"+s, unix.O_CREAT|unix.O_RDWR)
				if err != nil {
					panic(err)
				}
				p.Close(fd)
				start := time.Now()
				i := 0
				for true {
					Lookup(p, "/x"+s)
					i++
					t := time.Now()
					elapsed := t.Sub(start)
					if elapsed >= N {
						break
					}
				}
				return i
			})
		fmt.Printf("Lookup: %d file in %d usec with %d threads\n",
			res, N.Nanoseconds()/1e3, i)
	}
}
