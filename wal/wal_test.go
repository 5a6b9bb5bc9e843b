package wal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-inodefs/bcache"
	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/super"
)

const dev = uint32(1)

func mkLog(d disk.Disk) (*Log, *bcache.Bcache, *super.Superblock) {
	sb := super.MkSuperblock(d.Size(), 50)
	bc := bcache.MkBcache(param.NBUF)
	bc.Attach(dev, d)
	return MkLog(bc, dev, sb), bc, sb
}

func writeByte(l *Log, bc *bcache.Bcache, bn common.Bnum, v byte) {
	b := bc.Bread(dev, bn)
	b.Data[0] = v
	l.Write(b)
	bc.Brelse(b)
}

func TestHdrEncoding(t *testing.T) {
	blk := make([]byte, disk.BlockSize)
	encodeHdr(&hdr{blocks: []common.Bnum{7, 100, 3}}, blk)
	h := decodeHdr(blk)
	assert.Equal(t, []common.Bnum{7, 100, 3}, h.blocks)
}

func TestCommitInstalls(t *testing.T) {
	d := disk.NewMemDisk(200)
	l, bc, sb := mkLog(d)
	var commits []uint64
	l.OnCommit(func(n uint64) { commits = append(commits, n) })

	data := sb.DataStart()
	l.BeginOp()
	writeByte(l, bc, data, 1)
	writeByte(l, bc, data+1, 2)
	writeByte(l, bc, data, 3) // absorbed
	assert.Len(t, l.lh.blocks, 2)
	assert.Equal(t, byte(0), d.Read(data)[0], "nothing before commit")
	l.EndOp()

	assert.Equal(t, byte(3), d.Read(data)[0])
	assert.Equal(t, byte(2), d.Read(data+1)[0])
	assert.Equal(t, []uint64{1}, commits)
	assert.Empty(t, decodeHdr(d.Read(uint64(sb.Logstart))).blocks, "header cleared")

	// an empty operation does not commit
	l.BeginOp()
	l.EndOp()
	assert.Equal(t, []uint64{1}, commits)
}

func TestGroupCommit(t *testing.T) {
	d := disk.NewMemDisk(200)
	l, bc, sb := mkLog(d)
	data := sb.DataStart()
	l.BeginOp()
	l.BeginOp()
	writeByte(l, bc, data, 1)
	l.EndOp()
	assert.Equal(t, byte(0), d.Read(data)[0], "other op still running")
	writeByte(l, bc, data+1, 1)
	l.EndOp()
	assert.Equal(t, byte(1), d.Read(data)[0])
	assert.Equal(t, byte(1), d.Read(data+1)[0])
}

func TestRecover(t *testing.T) {
	d := disk.NewMemDisk(200)
	sb := super.MkSuperblock(d.Size(), 50)
	data := sb.DataStart()

	// a committed transaction that crashed before install
	blk := make(disk.Block, disk.BlockSize)
	blk[0] = 42
	d.Write(uint64(sb.Logstart)+1, blk)
	hb := make(disk.Block, disk.BlockSize)
	encodeHdr(&hdr{blocks: []common.Bnum{data + 5}}, hb)
	d.Write(uint64(sb.Logstart), hb)

	l, _, _ := mkLog(d)
	l.Recover()
	assert.Equal(t, byte(42), d.Read(data + 5)[0])
	assert.Empty(t, decodeHdr(d.Read(uint64(sb.Logstart))).blocks)
}

func TestWriteOutsideOp(t *testing.T) {
	d := disk.NewMemDisk(200)
	l, bc, sb := mkLog(d)
	b := bc.Bread(dev, sb.DataStart())
	assert.Panics(t, func() { l.Write(b) })
	bc.Brelse(b)
}

func TestTransactionTooBig(t *testing.T) {
	d := disk.NewMemDisk(200)
	l, bc, sb := mkLog(d)
	l.BeginOp()
	for i := uint64(0); i < l.size; i++ {
		writeByte(l, bc, sb.DataStart()+i, 1)
	}
	b := bc.Bread(dev, sb.DataStart()+l.size)
	require.Panics(t, func() { l.Write(b) })
	bc.Brelse(b)
}
