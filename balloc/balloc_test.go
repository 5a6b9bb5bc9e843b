package balloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-inodefs/bcache"
	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/super"
	"github.com/mit-pdos/go-inodefs/wal"
)

func mkAlloc(sz uint64) (*Alloc, *wal.Log, disk.Disk) {
	d := disk.NewMemDisk(sz)
	sb := super.MkSuperblock(sz, 50)
	bc := bcache.MkBcache(param.NBUF)
	bc.Attach(param.ROOTDEV, d)
	log := wal.MkLog(bc, param.ROOTDEV, sb)
	return MkAlloc(bc, log, sb, param.ROOTDEV), log, d
}

func TestAllocFree(t *testing.T) {
	a, log, d := mkAlloc(200)
	nfree := a.NFree()

	// dirty the block that will be handed out
	junk := make(disk.Block, disk.BlockSize)
	junk[10] = 1
	d.Write(uint64(a.sb.DataStart()), junk)

	log.BeginOp()
	bn1 := a.Balloc()
	bn2 := a.Balloc()
	log.EndOp()
	assert.Equal(t, a.sb.DataStart(), bn1, "first data block")
	assert.Equal(t, bn1+1, bn2)
	assert.True(t, a.IsAllocated(bn1))
	assert.Equal(t, nfree-2, a.NFree())
	assert.Equal(t, make([]byte, disk.BlockSize), []byte(d.Read(bn1)), "zeroed")

	log.BeginOp()
	a.Bfree(bn1)
	log.EndOp()
	assert.False(t, a.IsAllocated(bn1))

	log.BeginOp()
	bn3 := a.Balloc()
	log.EndOp()
	assert.Equal(t, bn1, bn3, "lowest free block first")
}

func TestDoubleFreePanics(t *testing.T) {
	a, log, _ := mkAlloc(200)
	log.BeginOp()
	bn := a.Balloc()
	a.Bfree(bn)
	assert.Panics(t, func() { a.Bfree(bn) })
	assert.Panics(t, func() { a.Bfree(common.Bnum(1)) }, "superblock")
	log.EndOp()
}

func TestOutOfBlocks(t *testing.T) {
	a, log, _ := mkAlloc(60)
	n := a.NFree()
	for i := uint64(0); i < n; i++ {
		log.BeginOp()
		a.Balloc()
		log.EndOp()
	}
	log.BeginOp()
	assert.PanicsWithValue(t, "balloc: out of blocks", func() { a.Balloc() })
}

func TestConcurrentAllocDistinct(t *testing.T) {
	a, log, _ := mkAlloc(200)
	nfree := a.NFree()
	const nthread = 8
	const per = 10
	got := make([][]common.Bnum, nthread)
	var wg sync.WaitGroup
	for i := 0; i < nthread; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < per; j++ {
				log.BeginOp()
				got[i] = append(got[i], a.Balloc())
				log.EndOp()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[common.Bnum]bool)
	for _, bns := range got {
		for _, bn := range bns {
			assert.False(t, seen[bn], "block %d handed out twice", bn)
			seen[bn] = true
			assert.True(t, a.IsAllocated(bn))
		}
	}
	assert.Equal(t, nfree-nthread*per, a.NFree())
}
