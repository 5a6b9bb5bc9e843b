// Package crash_disk simulates a crash under a running file system.
//
// Until Crash is called, writes go through to the underlying disk.
// After, the underlying disk is frozen and writes land in an in-memory
// overlay, so the running file system stays self-consistent while the
// underlying disk holds exactly what would survive the crash.
package crash_disk

import (
	"sync"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"
)

type Disk struct {
	mu      *sync.Mutex
	d       disk.Disk
	crashed bool
	overlay map[uint64]disk.Block
}

func New(d disk.Disk) *Disk {
	return &Disk{
		mu:      new(sync.Mutex),
		d:       d,
		overlay: make(map[uint64]disk.Block),
	}
}

var _ disk.Disk = &Disk{}

func (d *Disk) Crash() {
	d.mu.Lock()
	util.DPrintf(1, "crash_disk: crash\n")
	d.crashed = true
	d.mu.Unlock()
}

func (d *Disk) Crashed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.crashed
}

func (d *Disk) ReadTo(a uint64, b disk.Block) {
	copy(b, d.Read(a))
}

func (d *Disk) Read(a uint64) disk.Block {
	d.mu.Lock()
	blk, ok := d.overlay[a]
	d.mu.Unlock()
	if ok {
		b := make(disk.Block, disk.BlockSize)
		copy(b, blk)
		return b
	}
	return d.d.Read(a)
}

func (d *Disk) Write(a uint64, b disk.Block) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.crashed {
		blk := make(disk.Block, disk.BlockSize)
		copy(blk, b)
		d.overlay[a] = blk
		return
	}
	d.d.Write(a, b)
}

func (d *Disk) Barrier() {
	d.mu.Lock()
	crashed := d.crashed
	d.mu.Unlock()
	if !crashed {
		d.d.Barrier()
	}
}

func (d *Disk) Size() uint64 {
	return d.d.Size()
}

func (d *Disk) Close() {}

// Underlying returns the disk as it stands at the crash.
func (d *Disk) Underlying() disk.Disk {
	return d.d
}
