package super

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/param"
)

func TestLayout(t *testing.T) {
	sb := MkSuperblock(param.FSSIZE, param.NINODES)
	assert.Equal(t, uint32(2), sb.Logstart)
	assert.Equal(t, sb.Logstart+sb.Nlog, sb.Inodestart)
	assert.Less(t, sb.Inodestart, sb.Bmapstart)
	assert.Equal(t, uint32(param.FSSIZE), sb.Size)
	assert.Equal(t, common.Bnum(sb.Bmapstart+1), sb.DataStart())

	assert.Equal(t, common.Bnum(sb.Inodestart), sb.IBlock(0))
	assert.Equal(t, common.Bnum(sb.Inodestart+1), sb.IBlock(common.Inum(common.IPB)))
	assert.Equal(t, uint64(3)*common.DINODESZ, sb.IOff(3))
	assert.Equal(t, common.Bnum(sb.Bmapstart), sb.BBlock(common.Bnum(param.FSSIZE-1)))
}

func TestReadWriteSuper(t *testing.T) {
	d := disk.NewMemDisk(param.FSSIZE)
	sb := MkSuperblock(param.FSSIZE, param.NINODES)
	WriteSuper(d, sb)
	assert.Equal(t, sb, ReadSuper(d))
	assert.Equal(t, make([]byte, disk.BlockSize), []byte(d.Read(0)), "boot block untouched")
}

func TestTooSmall(t *testing.T) {
	assert.Panics(t, func() { MkSuperblock(10, param.NINODES) })
}
