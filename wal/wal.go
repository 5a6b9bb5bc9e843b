package wal

import (
	"sync"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine"

	"github.com/mit-pdos/go-inodefs/bcache"
	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/super"
)

// Simple logging that allows concurrent FS operations.
//
// A log transaction contains the updates of multiple FS operations.
// The logging system only commits when there are no FS operations
// active. Thus there is never any reasoning required about whether
// a commit might write an uncommitted operation's updates to disk.
//
// An operation calls BeginOp/EndOp to mark its start and end. Usually
// BeginOp just increments the count of in-progress operations and
// returns, but if it thinks the log is close to running out, it
// sleeps until the last outstanding EndOp commits.
//
// The log is a physical re-do log containing disk blocks. The on-disk
// format:
//   header block, containing block #s for block A, B, C, ...
//   block A
//   block B
//   block C
//   ...

type hdr struct {
	blocks []common.Bnum
}

func decodeHdr(blk []byte) *hdr {
	n := machine.UInt32Get(blk[0:4])
	h := &hdr{blocks: make([]common.Bnum, n)}
	for i := uint64(0); i < uint64(n); i++ {
		off := 4 + 4*i
		h.blocks[i] = common.Bnum(machine.UInt32Get(blk[off : off+4]))
	}
	return h
}

func encodeHdr(h *hdr, blk []byte) {
	machine.UInt32Put(blk[0:4], uint32(len(h.blocks)))
	for i, bn := range h.blocks {
		off := 4 + 4*uint64(i)
		machine.UInt32Put(blk[off:off+4], uint32(bn))
	}
}

type Log struct {
	mu          *sync.Mutex
	cond        *sync.Cond
	bc          *bcache.Bcache
	dev         uint32
	start       common.Bnum // header block
	size        uint64      // log blocks after the header
	outstanding uint64      // how many FS ops are executing
	committing  bool        // in commit(), please wait
	lh          hdr
	ncommit     uint64
	onCommit    func(n uint64)
}

func MkLog(bc *bcache.Bcache, dev uint32, sb *super.Superblock) *Log {
	if uint64(4+4*param.LOGSIZE) > common.BSIZE {
		panic("MkLog: too big header")
	}
	size := uint64(sb.Nlog) - 1
	if size > param.LOGSIZE {
		size = param.LOGSIZE
	}
	mu := new(sync.Mutex)
	l := &Log{
		mu:    mu,
		cond:  sync.NewCond(mu),
		bc:    bc,
		dev:   dev,
		start: common.Bnum(sb.Logstart),
		size:  size,
		lh:    hdr{blocks: make([]common.Bnum, 0)},
	}
	util.DPrintf(1, "MkLog: dev %d start %d size %d\n", dev, l.start, l.size)
	return l
}

// OnCommit registers f to run after each commit completes, with the
// number of commits so far.
func (l *Log) OnCommit(f func(n uint64)) {
	l.mu.Lock()
	l.onCommit = f
	l.mu.Unlock()
}

// Copy committed blocks from log to their home location.
func (l *Log) installTrans(recovering bool) {
	for i, bn := range l.lh.blocks {
		lbuf := l.bc.Bread(l.dev, l.start+common.Bnum(i)+1)
		dbuf := l.bc.Bread(l.dev, bn)
		copy(dbuf.Data, lbuf.Data)
		l.bc.Bwrite(dbuf)
		if !recovering {
			l.bc.Bunpin(dbuf)
		}
		l.bc.Brelse(lbuf)
		l.bc.Brelse(dbuf)
	}
}

func (l *Log) readHead() {
	buf := l.bc.Bread(l.dev, l.start)
	l.lh = *decodeHdr(buf.Data)
	l.bc.Brelse(buf)
}

// Write in-memory log header to disk.  This is the true point at
// which the current transaction commits.
func (l *Log) writeHead() {
	buf := l.bc.Bread(l.dev, l.start)
	encodeHdr(&l.lh, buf.Data)
	l.bc.Bwrite(buf)
	l.bc.Brelse(buf)
	l.bc.Barrier(l.dev)
}

// Recover replays a committed but uninstalled transaction.
func (l *Log) Recover() {
	l.readHead()
	if uint64(len(l.lh.blocks)) > l.size {
		panic("Recover: bad header")
	}
	util.DPrintf(1, "Recover: %d blocks\n", len(l.lh.blocks))
	l.installTrans(true)
	l.lh.blocks = l.lh.blocks[:0]
	l.writeHead()
}

// BeginOp is called at the start of each FS operation.
func (l *Log) BeginOp() {
	l.mu.Lock()
	for {
		if l.committing {
			l.cond.Wait()
		} else if uint64(len(l.lh.blocks))+(l.outstanding+1)*param.MAXOPBLOCKS > l.size {
			// this op might exhaust log space; wait for commit.
			l.cond.Wait()
		} else {
			l.outstanding += 1
			break
		}
	}
	l.mu.Unlock()
}

// EndOp is called at the end of each FS operation and commits if this
// was the last outstanding operation.
func (l *Log) EndOp() {
	var doCommit = false
	l.mu.Lock()
	if l.outstanding == 0 {
		l.mu.Unlock()
		panic("EndOp")
	}
	l.outstanding -= 1
	if l.committing {
		l.mu.Unlock()
		panic("l.committing")
	}
	if l.outstanding == 0 {
		doCommit = true
		l.committing = true
	} else {
		// BeginOp() may be waiting for log space, and decrementing
		// outstanding has decreased the amount of reserved space.
		l.cond.Broadcast()
	}
	l.mu.Unlock()

	if doCommit {
		// call commit w/o holding locks, since not allowed to sleep
		// with locks.
		committed := l.commit()
		l.mu.Lock()
		l.committing = false
		if committed {
			l.ncommit += 1
		}
		n := l.ncommit
		f := l.onCommit
		l.cond.Broadcast()
		l.mu.Unlock()
		if committed && f != nil {
			f(n)
		}
	}
}

// Copy modified blocks from cache to log.
func (l *Log) writeLog() {
	for i, bn := range l.lh.blocks {
		to := l.bc.Bread(l.dev, l.start+common.Bnum(i)+1)
		from := l.bc.Bread(l.dev, bn)
		copy(to.Data, from.Data)
		l.bc.Bwrite(to)
		l.bc.Brelse(from)
		l.bc.Brelse(to)
	}
}

func (l *Log) commit() bool {
	if len(l.lh.blocks) == 0 {
		return false
	}
	util.DPrintf(5, "commit: %d blocks\n", len(l.lh.blocks))
	l.writeLog()
	l.bc.Barrier(l.dev)
	l.writeHead()
	l.installTrans(false)
	l.lh.blocks = l.lh.blocks[:0]
	l.writeHead()
	return true
}

// Write records b as part of the current transaction and pins it in
// the cache until commit.  It replaces Bwrite; a typical use is:
//   b := bc.Bread(...)
//   modify b.Data
//   log.Write(b)
//   bc.Brelse(b)
func (l *Log) Write(b *bcache.Buf) {
	l.mu.Lock()
	if uint64(len(l.lh.blocks)) >= l.size {
		l.mu.Unlock()
		panic("too big a transaction")
	}
	if l.outstanding < 1 {
		l.mu.Unlock()
		panic("log write outside of trans")
	}
	for _, bn := range l.lh.blocks {
		if bn == b.Blockno {
			// log absorption
			l.mu.Unlock()
			return
		}
	}
	l.lh.blocks = append(l.lh.blocks, b.Blockno)
	l.bc.Bpin(b)
	l.mu.Unlock()
}

func (l *Log) Dev() uint32 {
	return l.dev
}
