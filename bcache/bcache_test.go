package bcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"
)

func TestReadWrite(t *testing.T) {
	d := disk.NewMemDisk(10)
	bc := MkBcache(4)
	bc.Attach(1, d)

	b := bc.Bread(1, 3)
	assert.Equal(t, make([]byte, disk.BlockSize), []byte(b.Data))
	b.Data[0] = 7
	bc.Bwrite(b)
	bc.Brelse(b)
	assert.Equal(t, byte(7), d.Read(3)[0], "write-through")

	b = bc.Bread(1, 3)
	assert.Equal(t, byte(7), b.Data[0])
	bc.Brelse(b)
}

func TestSameBuffer(t *testing.T) {
	bc := MkBcache(4)
	bc.Attach(1, disk.NewMemDisk(10))
	bc.Attach(2, disk.NewMemDisk(10))

	b1 := bc.Bread(1, 3)
	bc.Brelse(b1)
	b2 := bc.Bread(1, 3)
	assert.Same(t, b1, b2)
	bc.Brelse(b2)

	b3 := bc.Bread(2, 3)
	assert.NotSame(t, b1, b3, "other device")
	bc.Brelse(b3)
}

func TestRecycleLRU(t *testing.T) {
	bc := MkBcache(2)
	bc.Attach(1, disk.NewMemDisk(10))
	b1 := bc.Bread(1, 1)
	bc.Brelse(b1)
	b2 := bc.Bread(1, 2)
	bc.Brelse(b2)

	// block 1 is least recently used
	b3 := bc.Bread(1, 3)
	assert.Same(t, b1, b3)
	bc.Brelse(b3)
	b4 := bc.Bread(1, 2)
	assert.Same(t, b2, b4, "still cached")
	bc.Brelse(b4)
}

func TestPinnedNotRecycled(t *testing.T) {
	bc := MkBcache(2)
	bc.Attach(1, disk.NewMemDisk(10))
	b1 := bc.Bread(1, 1)
	b1.Data[0] = 9
	bc.Bpin(b1)
	bc.Brelse(b1)
	for bn := uint64(2); bn < 6; bn++ {
		b := bc.Bread(1, bn)
		bc.Brelse(b)
	}
	b := bc.Bread(1, 1)
	assert.Same(t, b1, b)
	assert.Equal(t, byte(9), b.Data[0], "unwritten change survives")
	bc.Bunpin(b)
	bc.Brelse(b)
}

func TestWaitForFreeBuffer(t *testing.T) {
	bc := MkBcache(1)
	bc.Attach(1, disk.NewMemDisk(10))
	b1 := bc.Bread(1, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b := bc.Bread(1, 2)
		assert.Equal(t, uint64(2), b.Blockno)
		bc.Brelse(b)
	}()
	time.Sleep(10 * time.Millisecond)
	bc.Brelse(b1)
	wg.Wait()
}
