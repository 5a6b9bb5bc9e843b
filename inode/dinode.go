package inode

import (
	"github.com/tchajed/goose/machine"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-inodefs/common"
)

// On-disk inode, common.DINODESZ bytes:
//   major, minor, nlink int16; pad uint16; size, mode uint32;
//   gid, uid uint16; ctime, atime, mtime uint32;
//   addrs [NDIRECT+2]uint32
type dinode struct {
	major int16
	minor int16
	nlink int16
	size  uint32
	mode  uint32
	gid   uint16
	uid   uint16
	ctime uint32
	atime uint32
	mtime uint32
	addrs []uint64
}

// 16-bit fields, little-endian like the rest of the record
func le16(x uint16) []byte {
	return []byte{byte(x), byte(x >> 8)}
}

func from16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func (d *dinode) encode() []byte {
	enc := marshal.NewEnc(common.DINODESZ)
	enc.PutBytes(le16(uint16(d.major)))
	enc.PutBytes(le16(uint16(d.minor)))
	enc.PutBytes(le16(uint16(d.nlink)))
	enc.PutBytes(le16(0))
	enc.PutInt32(d.size)
	enc.PutInt32(d.mode)
	enc.PutBytes(le16(d.gid))
	enc.PutBytes(le16(d.uid))
	enc.PutInt32(d.ctime)
	enc.PutInt32(d.atime)
	enc.PutInt32(d.mtime)
	for i := uint64(0); i < common.NADDRS; i++ {
		var a uint64 = 0
		if i < uint64(len(d.addrs)) {
			a = d.addrs[i]
		}
		enc.PutInt32(uint32(a))
	}
	return enc.Finish()
}

func decodeDinode(b []byte) *dinode {
	dec := marshal.NewDec(b)
	d := &dinode{}
	d.major = int16(from16(dec.GetBytes(2)))
	d.minor = int16(from16(dec.GetBytes(2)))
	d.nlink = int16(from16(dec.GetBytes(2)))
	dec.GetBytes(2) // pad
	d.size = dec.GetInt32()
	d.mode = dec.GetInt32()
	d.gid = from16(dec.GetBytes(2))
	d.uid = from16(dec.GetBytes(2))
	d.ctime = dec.GetInt32()
	d.atime = dec.GetInt32()
	d.mtime = dec.GetInt32()
	d.addrs = make([]uint64, common.NADDRS)
	for i := range d.addrs {
		d.addrs[i] = uint64(dec.GetInt32())
	}
	return d
}

func (ip *Inode) dinode() *dinode {
	return &dinode{
		major: ip.Major,
		minor: ip.Minor,
		nlink: ip.Nlink,
		size:  ip.Size,
		mode:  ip.Mode,
		gid:   ip.Gid,
		uid:   ip.Uid,
		ctime: ip.Ctime,
		atime: ip.Atime,
		mtime: ip.Mtime,
		addrs: ip.Addrs.slice(),
	}
}

func (ip *Inode) load(d *dinode) {
	ip.Major = d.major
	ip.Minor = d.minor
	ip.Nlink = d.nlink
	ip.Size = d.size
	ip.Mode = d.mode
	ip.Uid = d.uid
	ip.Gid = d.gid
	ip.Atime = d.atime
	ip.Ctime = d.ctime
	ip.Mtime = d.mtime
	ip.Addrs = addrsFrom(d.addrs)
}

// entry i of an indirect block
func getAddr(blk []byte, i uint64) common.Bnum {
	return common.Bnum(machine.UInt32Get(blk[4*i : 4*i+4]))
}

func putAddr(blk []byte, i uint64, bn common.Bnum) {
	machine.UInt32Put(blk[4*i:4*i+4], uint32(bn))
}
