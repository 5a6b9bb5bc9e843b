package inode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-inodefs/common"
)

func TestLocate(t *testing.T) {
	loc, ok := Locate(0)
	assert.True(t, ok)
	assert.Equal(t, Loc{Level: DIRECT, Inner: 0}, loc)

	loc, _ = Locate(common.NDIRECT - 1)
	assert.Equal(t, Loc{Level: DIRECT, Inner: common.NDIRECT - 1}, loc)

	loc, _ = Locate(common.NDIRECT)
	assert.Equal(t, Loc{Level: SINGLE, Inner: 0}, loc)

	loc, _ = Locate(common.NDIRECT + common.NINDIRECT - 1)
	assert.Equal(t, Loc{Level: SINGLE, Inner: common.NINDIRECT - 1}, loc)

	loc, _ = Locate(common.NDIRECT + common.NINDIRECT)
	assert.Equal(t, Loc{Level: DOUBLE, Outer: 0, Inner: 0}, loc)

	loc, _ = Locate(common.NDIRECT + 2*common.NINDIRECT + 3)
	assert.Equal(t, Loc{Level: DOUBLE, Outer: 1, Inner: 3}, loc)

	loc, ok = Locate(common.MAXFILE - 1)
	assert.True(t, ok)
	assert.Equal(t, Loc{Level: DOUBLE, Outer: common.NINDIRECT - 1, Inner: common.NINDIRECT - 1}, loc)

	_, ok = Locate(common.MAXFILE)
	assert.False(t, ok)
}

func TestBmapPanicsOutOfRange(t *testing.T) {
	ic := mkIcache(t, 1)
	ip := mkfile(t, ic)
	ip.Lock()
	assert.Panics(t, func() { ip.bmap(common.MAXFILE) })
	ip.Unlock()
}

// expected structure blocks allocated along with data block bn
func nstruct(bn uint64) uint64 {
	if bn == common.NDIRECT {
		return 1 // single-indirect
	}
	if bn >= common.NDIRECT+common.NINDIRECT &&
		(bn-common.NDIRECT-common.NINDIRECT)%common.NINDIRECT == 0 {
		if bn == common.NDIRECT+common.NINDIRECT {
			return 2 // double-indirect and its first indirect block
		}
		return 1
	}
	return 0
}

func TestBmapMonotonic(t *testing.T) {
	// room for two indirect blocks under the double-indirect one
	ic := mkIcacheSz(t, 1, 4000)
	ip := mkfile(t, ic)
	seen := make(map[common.Bnum]bool)
	last := common.NDIRECT + 2*common.NINDIRECT + 1
	for bn := uint64(0); bn <= last; bn++ {
		before := nalloc(ic)
		ic.Log.BeginOp()
		ip.Lock()
		addr, changed := ip.bmap(bn)
		if changed {
			ip.Update()
		}
		ip.Unlock()
		ic.Log.EndOp()
		require.False(t, seen[addr], "block %d reused at %d", addr, bn)
		seen[addr] = true
		require.Equal(t, before+1+nstruct(bn), nalloc(ic), "bn %d", bn)

		// translating again allocates nothing
		ip.Lock()
		assert.Equal(t, addr, ip.lookup(bn))
		ip.Unlock()
	}
}

func TestTruncFreesEverything(t *testing.T) {
	ic := mkIcache(t, 1)
	before := nalloc(ic)
	ip := mkfile(t, ic)

	// no holes: every index up to the first double-indirect block
	nblk := common.NDIRECT + common.NINDIRECT + 1
	data := mkdata(common.BSIZE)
	for bn := uint64(0); bn < nblk; bn++ {
		ic.Log.BeginOp()
		ip.Lock()
		n, err := ip.Write(data, bn*common.BSIZE)
		require.NoError(t, err)
		require.Equal(t, common.BSIZE, n)
		ip.Unlock()
		ic.Log.EndOp()
	}
	for _, bn := range []uint64{0, common.NDIRECT, common.NDIRECT + common.NINDIRECT - 1,
		common.NDIRECT + common.NINDIRECT} {
		ip.Lock()
		assert.NotEqual(t, common.Bnum(0), ip.lookup(bn))
		ip.Unlock()
	}
	assert.Equal(t, before+nblk+3, nalloc(ic))

	ic.Log.BeginOp()
	ip.Lock()
	ip.Nlink = 0
	ip.Update()
	ip.Unlock()
	ip.Put()
	ic.Log.EndOp()

	assert.Equal(t, before, nalloc(ic))

	// the inode is free on disk again
	b := ic.Bc.Bread(ic.Dev, ic.Sb.IBlock(ip.Inum))
	off := ic.Sb.IOff(ip.Inum)
	d := decodeDinode(b.Data[off : off+common.DINODESZ])
	ic.Bc.Brelse(b)
	assert.Equal(t, uint32(0), d.mode)
	assert.Equal(t, uint32(0), d.size)
	assert.Equal(t, make([]uint64, common.NADDRS), d.addrs)
}

func TestReadHoleIsZero(t *testing.T) {
	ic := mkIcache(t, 1)
	ip := mkfile(t, ic)
	ip.Lock()
	// size without blocks: reads see zeros and allocate nothing
	ip.Size = uint32(common.BSIZE)
	buf := mkdata(16)
	n, err := ip.Read(buf, 10)
	assert.NoError(t, err)
	assert.Equal(t, uint64(16), n)
	assert.Equal(t, make([]byte, 16), buf)
	ip.Size = 0
	ip.Unlock()
}
