package super

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/param"
)

// Block holding the superblock; block 0 is the boot block.
const SUPERBLK common.Bnum = 1

const SUPERSZ uint64 = 7 * 4

// Disk layout:
// [ boot block | super block | log | inode blocks | free bit map | data blocks ]
type Superblock struct {
	Size       uint32 // size of file system image (blocks)
	Nblocks    uint32 // number of data blocks
	Ninodes    uint32 // number of inodes
	Nlog       uint32 // number of log blocks, including the header
	Logstart   uint32 // block number of first log block
	Inodestart uint32 // block number of first inode block
	Bmapstart  uint32 // block number of first free map block
}

// MkSuperblock computes the layout for an image of size blocks holding
// ninodes inodes.
func MkSuperblock(size uint64, ninodes uint32) *Superblock {
	nlog := uint64(param.LOGSIZE) + 1
	ninodeblocks := uint64(ninodes)/common.IPB + 1
	nbitmap := size/common.BPB + 1
	nmeta := 2 + nlog + ninodeblocks + nbitmap
	if nmeta >= size {
		panic("MkSuperblock")
	}
	return &Superblock{
		Size:       uint32(size),
		Nblocks:    uint32(size - nmeta),
		Ninodes:    ninodes,
		Nlog:       uint32(nlog),
		Logstart:   2,
		Inodestart: uint32(2 + nlog),
		Bmapstart:  uint32(2 + nlog + ninodeblocks),
	}
}

func (sb *Superblock) String() string {
	return fmt.Sprintf("size %d nblocks %d ninodes %d nlog %d logstart %d inodestart %d bmapstart %d",
		sb.Size, sb.Nblocks, sb.Ninodes, sb.Nlog, sb.Logstart, sb.Inodestart, sb.Bmapstart)
}

func (sb *Superblock) Encode() []byte {
	enc := marshal.NewEnc(common.BSIZE)
	enc.PutInt32(sb.Size)
	enc.PutInt32(sb.Nblocks)
	enc.PutInt32(sb.Ninodes)
	enc.PutInt32(sb.Nlog)
	enc.PutInt32(sb.Logstart)
	enc.PutInt32(sb.Inodestart)
	enc.PutInt32(sb.Bmapstart)
	return enc.Finish()
}

func Decode(b []byte) *Superblock {
	dec := marshal.NewDec(b)
	sb := &Superblock{}
	sb.Size = dec.GetInt32()
	sb.Nblocks = dec.GetInt32()
	sb.Ninodes = dec.GetInt32()
	sb.Nlog = dec.GetInt32()
	sb.Logstart = dec.GetInt32()
	sb.Inodestart = dec.GetInt32()
	sb.Bmapstart = dec.GetInt32()
	return sb
}

// ReadSuper reads the superblock straight from d; it runs once at
// mount, before the buffer cache is attached.
func ReadSuper(d disk.Disk) *Superblock {
	return Decode(d.Read(SUPERBLK))
}

func WriteSuper(d disk.Disk, sb *Superblock) {
	d.Write(SUPERBLK, sb.Encode())
}

// Block containing inode inum.
func (sb *Superblock) IBlock(inum common.Inum) common.Bnum {
	return common.Bnum(uint64(inum)/common.IPB + uint64(sb.Inodestart))
}

// Byte offset of inode inum within its block.
func (sb *Superblock) IOff(inum common.Inum) uint64 {
	return (uint64(inum) % common.IPB) * common.DINODESZ
}

// Bitmap block containing the bit for block bn.
func (sb *Superblock) BBlock(bn common.Bnum) common.Bnum {
	return common.Bnum(uint64(bn)/common.BPB + uint64(sb.Bmapstart))
}

// DataStart is the first block number handed out by the allocator.
func (sb *Superblock) DataStart() common.Bnum {
	return common.Bnum(uint64(sb.Size) - uint64(sb.Nblocks))
}

func (sb *Superblock) NBitmap() uint64 {
	return uint64(sb.Size)/common.BPB + 1
}
