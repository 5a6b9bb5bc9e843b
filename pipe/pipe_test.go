package pipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/param"
)

func mkdata(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

func TestPipeLargerThanBuffer(t *testing.T) {
	p := MkPipe()
	data := mkdata(3*param.PIPESIZE + 7)
	done := make(chan struct{})
	go func() {
		n, err := p.Write(data)
		assert.NoError(t, err)
		assert.Equal(t, uint64(len(data)), n)
		p.Close(true)
		close(done)
	}()

	got := make([]byte, 0, len(data))
	buf := make([]byte, 100)
	for {
		n, err := p.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	<-done
	assert.Equal(t, data, got)
}

func TestPipeClosedReader(t *testing.T) {
	p := MkPipe()
	assert.False(t, p.Close(false))
	_, err := p.Write([]byte("x"))
	assert.Equal(t, unix.EPIPE, err)
	assert.True(t, p.Close(true), "both ends closed")
}
