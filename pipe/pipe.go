package pipe

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/param"
)

type Pipe struct {
	mu        *sync.Mutex
	cond      *sync.Cond
	data      []byte
	nread     uint64 // number of bytes read
	nwrite    uint64 // number of bytes written
	readopen  bool   // read fd is still open
	writeopen bool   // write fd is still open
}

func MkPipe() *Pipe {
	mu := new(sync.Mutex)
	return &Pipe{
		mu:        mu,
		cond:      sync.NewCond(mu),
		data:      make([]byte, param.PIPESIZE),
		readopen:  true,
		writeopen: true,
	}
}

// Close closes the read or write end.  It returns true when both ends
// are closed.
func (p *Pipe) Close(writable bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if writable {
		p.writeopen = false
	} else {
		p.readopen = false
	}
	p.cond.Broadcast()
	return !p.readopen && !p.writeopen
}

// Write blocks until all of src is buffered or the read end closes.
func (p *Pipe) Write(src []byte) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range src {
		for p.nwrite == p.nread+param.PIPESIZE {
			if !p.readopen {
				return uint64(i), unix.EPIPE
			}
			p.cond.Broadcast()
			p.cond.Wait()
		}
		if !p.readopen {
			return uint64(i), unix.EPIPE
		}
		p.data[p.nwrite%param.PIPESIZE] = src[i]
		p.nwrite++
	}
	p.cond.Broadcast()
	return uint64(len(src)), nil
}

// Read waits for data or for the write end to close, then returns
// what is buffered, up to len(dst).  It returns 0 at end of file.
func (p *Pipe) Read(dst []byte) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.nread == p.nwrite && p.writeopen {
		p.cond.Wait()
	}
	var n uint64 = 0
	for n < uint64(len(dst)) && p.nread < p.nwrite {
		dst[n] = p.data[p.nread%param.PIPESIZE]
		p.nread++
		n++
	}
	p.cond.Broadcast()
	return n, nil
}
