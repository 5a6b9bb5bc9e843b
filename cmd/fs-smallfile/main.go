package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/mit-pdos/go-journal/util"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/fs"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/proc"
)

// smallfile represents one iteration of this benchmark: it creates a file,
// write data to it, and deletes it.
func smallfile(p *proc.Proc, name string, data []byte) {
	fd, err := p.Open(name, unix.O_CREAT|unix.O_RDWR)
	if err != nil {
		panic(err)
	}
	_, err = p.Write(fd, data)
	if err != nil {
		panic(err)
	}
	p.Close(fd)
	err = p.Unlink(name)
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

type result struct {
	iters int
	times []time.Duration
}

func client(duration time.Duration, allTimes bool, p *proc.Proc) result {
	data := mkdata(uint64(100))
	var times []time.Duration
	if allTimes {
		times = make([]time.Duration, 0, int(duration.Seconds()*1000))
	}
	start := time.Now()
	i := 0
	var elapsed time.Duration
	for {
		s := strconv.Itoa(i)
		before := elapsed
		smallfile(p, "x"+s, data)
		i++
		elapsed = time.Since(start)
		if allTimes {
			times = append(times, (elapsed - before))
		}
		if elapsed >= duration {
			return result{iters: i, times: times}
		}
	}
}

type config struct {
	duration time.Duration
	allTimes bool // whether to record individual iteration timings
}

func run(f *fs.Fs, c config, nt int) (elapsed time.Duration, iters int, times []time.Duration) {
	start := time.Now()
	count := make(chan result)
	for i := 0; i < nt; i++ {
		i := i
		subdir := "/d" + strconv.Itoa(i)
		go func() {
			p := f.NewProc()
			defer p.Exit()
			err := p.Mkdir(subdir)
			if err != nil && err != unix.EEXIST {
				panic(err)
			}
			if err := p.Chdir(subdir); err != nil {
				panic(err)
			}
			allTimes := c.allTimes && i == 0
			count <- client(c.duration, allTimes, p)
		}()
	}
	for i := 0; i < nt; i++ {
		r := <-count
		iters += r.iters
		if r.times != nil {
			times = r.times
		}
	}
	elapsed = time.Since(start)
	return
}

func cleanup(f *fs.Fs, nt int) {
	p := f.NewProc()
	defer p.Exit()
	for i := 0; i < nt; i++ {
		p.Unlink("/d" + strconv.Itoa(i))
	}
}

func main() {
	var c config
	var start int
	var nthread int
	var timingFile string
	flag.DurationVar(&c.duration, "benchtime", 10*time.Second, "time to run each iteration for")
	flag.StringVar(&timingFile, "time-iters", "", "prefix for individual timing files")
	flag.IntVar(&start, "start", 1, "number of threads to start at")
	flag.IntVar(&nthread, "threads", 1, "number of threads to run till")

	var diskfile string
	flag.StringVar(&diskfile, "disk", "", "disk image (empty for MemDisk)")

	var dumpStats bool
	flag.BoolVar(&dumpStats, "stats", false, "dump stats to stderr at end")

	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")

	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")

	flag.Parse()
	if start < 1 {
		panic("invalid start")
	}

	d, err := fs.OpenDisk(diskfile, param.FSSIZE)
	if err != nil {
		panic(err)
	}
	fs.Mkfs(d, param.NINODES)
	cfg := fs.DefaultConfig()
	cfg.TimeDisk = dumpStats
	f := fs.Mount(d, cfg)
	defer f.Shutdown()

	// warmup (skip if running for very little time, for example when using a
	// duration of 0s to run just one iteration)
	if c.duration > 500*time.Millisecond {
		run(f, config{
			duration: 500 * time.Millisecond,
			allTimes: false},
			nthread)
		f.ResetStats()
	}

	if *cpuprofile != "" {
		pf, err := os.Create(*cpuprofile)
		if err != nil {
			panic(err)
		}
		pprof.StartCPUProfile(pf)
		defer pprof.StopCPUProfile()
	}

	for nt := start; nt <= nthread; nt++ {
		if timingFile != "" {
			c.allTimes = true
		}

		elapsed, count, times := run(f, c, nt)
		fmt.Printf("fs-smallfile: %v %0.4f file/sec\n", nt,
			float64(count)/elapsed.Seconds())
		if len(times) > 0 {
			tf, err := os.Create(fmt.Sprintf("%s-%d.txt", timingFile, nt))
			if err != nil {
				panic(fmt.Errorf("could not create timing file: %v", err))
			}
			for _, t := range times {
				fmt.Fprintf(tf, "%f\n", t.Seconds())
			}
			tf.Close()
		}
	}

	cleanup(f, nthread)
	if dumpStats {
		f.WriteOpStats(os.Stderr)
	}
}
