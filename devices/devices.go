// Package devices holds the device-file handlers registered in the
// device table at mount.
package devices

import (
	"io"
	"sync"

	"github.com/mit-pdos/go-inodefs/inode"
)

// Console writes to an io.Writer and reads from an io.Reader.
type Console struct {
	mu  *sync.Mutex
	out io.Writer
	in  io.Reader
}

func MkConsole(in io.Reader, out io.Writer) *Console {
	return &Console{mu: new(sync.Mutex), out: out, in: in}
}

func (c *Console) Read(ip *inode.Inode, dst []byte) (uint64, error) {
	if c.in == nil {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.in.Read(dst)
	if err == io.EOF {
		err = nil
	}
	return uint64(n), err
}

func (c *Console) Write(ip *inode.Inode, src []byte) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.out.Write(src)
	return uint64(n), err
}

// Null discards writes and reads as end of file.
type Null struct{}

func (Null) Read(ip *inode.Inode, dst []byte) (uint64, error) {
	return 0, nil
}

func (Null) Write(ip *inode.Inode, src []byte) (uint64, error) {
	return uint64(len(src)), nil
}

var _ inode.Device = &Console{}
var _ inode.Device = Null{}
