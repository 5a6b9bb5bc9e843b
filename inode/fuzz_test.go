package inode

import (
	"bytes"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/common"
)

const fuzzMaxWrite = 3 * common.BSIZE

// FuzzWriteRead applies a sequence of writes to one file and checks
// every read against an in-memory copy of the contents.  Each write is
// 5 bytes of ops: a 3-byte offset and a 2-byte length.
func FuzzWriteRead(f *testing.F) {
	f.Add([]byte{0, 0, 0, 0, 16})
	f.Add([]byte{0, 0, 0, 0xff, 0xff, 0, 0x20, 0, 0x10, 0})
	f.Add([]byte{0, 0, 0, 0x30, 0, 0, 0x60, 0, 0x30, 0, 0, 0x10, 0, 0, 1})
	f.Fuzz(func(t *testing.T, ops []byte) {
		ic := mkIcache(t, 1)
		ip := mkfile(t, ic)
		var model []byte
		for i := 0; i+5 <= len(ops) && i < 5*20; i += 5 {
			off := uint64(ops[i])<<16 | uint64(ops[i+1])<<8 | uint64(ops[i+2])
			n := (uint64(ops[i+3])<<8 | uint64(ops[i+4])) % fuzzMaxWrite
			off %= 32 * common.BSIZE
			data := make([]byte, n)
			for j := range data {
				data[j] = byte(i + j + 1)
			}

			ic.Log.BeginOp()
			ip.Lock()
			r, err := ip.Write(data, off)
			ip.Unlock()
			ic.Log.EndOp()

			if off > uint64(len(model)) {
				if err != unix.EDOM {
					t.Fatalf("write at %d past %d: %v", off, len(model), err)
				}
				continue
			}
			if err != nil || r != n {
				t.Fatalf("write %d at %d: %d %v", n, off, r, err)
			}
			if end := off + n; end > uint64(len(model)) {
				model = append(model, make([]byte, end-uint64(len(model)))...)
			}
			copy(model[off:], data)
		}

		ip.Lock()
		if uint64(ip.Size) != uint64(len(model)) {
			t.Fatalf("size %d, expected %d", ip.Size, len(model))
		}
		got := make([]byte, len(model))
		r, err := ip.Read(got, 0)
		ip.Unlock()
		if err != nil || r != uint64(len(model)) || !bytes.Equal(got, model) {
			t.Fatalf("contents differ after %d writes", len(ops)/5)
		}
	})
}
