package dcache

// Dcache remembers where the last entry was linked into a directory,
// so repeated links of the same inode number resume their scan for a
// free entry just past it.  It lives in the directory's in-memory
// inode and is protected by that inode's sleep-lock.
type Dcache struct {
	lastInum uint64
	lastOff  uint64
	valid    bool
}

func MkDcache() *Dcache {
	return &Dcache{}
}

// Start returns the offset at which to begin scanning for a free
// entry when linking inum into a directory of the given size.
func (dc *Dcache) Start(inum uint64, entsz uint64, size uint64) uint64 {
	if !dc.valid || dc.lastInum != inum {
		return 0
	}
	if dc.lastOff+entsz < size {
		return dc.lastOff + entsz
	}
	return 0
}

func (dc *Dcache) Record(inum uint64, off uint64) {
	dc.lastInum = inum
	dc.lastOff = off
	dc.valid = true
}

func (dc *Dcache) Reset() {
	dc.valid = false
	dc.lastInum = 0
	dc.lastOff = 0
}
