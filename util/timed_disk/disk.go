// Package timed_disk wraps a disk to record how many block reads,
// writes and barriers reach it and how long they take.
package timed_disk

import (
	"io"
	"time"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-inodefs/util/stats"
)

const (
	readOp int = iota
	writeOp
	barrierOp
	nOps
)

type Disk struct {
	d     disk.Disk
	names []string
	ops   [nOps]stats.Op
}

// New wraps d; name prefixes the rows of its stats table.
func New(name string, d disk.Disk) *Disk {
	return &Disk{
		d:     d,
		names: []string{name + ".read", name + ".write", name + ".barrier"},
	}
}

var _ disk.Disk = &Disk{}

func (d *Disk) ReadTo(a uint64, b disk.Block) {
	copy(b, d.Read(a))
}

func (d *Disk) Read(a uint64) disk.Block {
	defer d.ops[readOp].Record(time.Now())
	return d.d.Read(a)
}

func (d *Disk) Write(a uint64, b disk.Block) {
	defer d.ops[writeOp].Record(time.Now())
	d.d.Write(a, b)
}

func (d *Disk) Barrier() {
	defer d.ops[barrierOp].Record(time.Now())
	d.d.Barrier()
}

func (d *Disk) Size() uint64 {
	return d.d.Size()
}

func (d *Disk) Close() {
	d.d.Close()
}

// Writes is the number of block writes so far.
func (d *Disk) Writes() uint32 {
	return d.ops[writeOp].Count()
}

func (d *Disk) WriteStats(w io.Writer) {
	stats.WriteTable(d.names, d.ops[:], w)
}

func (d *Disk) ResetStats() {
	for i := range d.ops {
		d.ops[i].Reset()
	}
}
