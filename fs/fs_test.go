package fs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-inodefs/common"
	"github.com/mit-pdos/go-inodefs/dir"
	"github.com/mit-pdos/go-inodefs/file"
	"github.com/mit-pdos/go-inodefs/param"
	"github.com/mit-pdos/go-inodefs/proc"
	"github.com/mit-pdos/go-inodefs/util/crash_disk"
)

func mkdata(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

func readAll(t *testing.T, p *proc.Proc, path string) []byte {
	fd, err := p.Open(path, unix.O_RDONLY)
	require.NoError(t, err)
	st, err := p.Fstat(fd)
	require.NoError(t, err)
	buf := make([]byte, st.Size)
	n, err := p.Read(fd, buf)
	require.NoError(t, err)
	require.NoError(t, p.Close(fd))
	return buf[:n]
}

func TestMkfsRoot(t *testing.T) {
	d := disk.NewMemDisk(param.FSSIZE)
	Mkfs(d, param.NINODES)
	fs := Mount(d, DefaultConfig())

	root := fs.Icache.Get(fs.cfg.Dev, common.ROOTINO)
	root.Lock()
	assert.True(t, root.IsDir())
	assert.Equal(t, int16(1), root.Nlink)
	assert.Equal(t, uint32(2*common.DIRENTSZ), root.Size)
	n := 0
	dir.Apply(root, func(name string, inum common.Inum, off uint64) {
		assert.Equal(t, common.ROOTINO, inum)
		n++
	})
	assert.Equal(t, 2, n)
	root.Unlock()

	for bn := common.Bnum(0); bn < fs.Sb.DataStart(); bn++ {
		assert.True(t, fs.Alloc.IsAllocated(bn), "metadata block %d", bn)
	}
	assert.Equal(t, uint64(fs.Sb.Nblocks)-1, fs.Alloc.NFree(), "root dir block")
}

func TestRemount(t *testing.T) {
	d := disk.NewMemDisk(param.FSSIZE)
	Mkfs(d, param.NINODES)
	fs := Mount(d, DefaultConfig())
	p := fs.NewProc()
	require.NoError(t, p.Mkdir("/d"))
	fd, err := p.Open("/d/f", unix.O_CREAT|unix.O_RDWR)
	require.NoError(t, err)
	data := mkdata(20 * common.BSIZE)
	_, err = p.Write(fd, data)
	require.NoError(t, err)
	require.NoError(t, p.Close(fd))
	require.NoError(t, p.Symlink("/d/f", "/l"))
	p.Exit()
	fs.Shutdown()

	fs = Mount(d, DefaultConfig())
	p = fs.NewProc()
	assert.Equal(t, data, readAll(t, p, "/l"))
	s, err := p.Readlink("/l")
	require.NoError(t, err)
	assert.Equal(t, "/d/f", s)
}

// A crash during a large write leaves whole chunks on disk.
func TestCrashChunkedWrite(t *testing.T) {
	for _, k := range []uint64{0, 1, 3} {
		d := disk.NewMemDisk(param.FSSIZE)
		Mkfs(d, param.NINODES)
		cd := crash_disk.New(d)
		fs := Mount(cd, DefaultConfig())
		p := fs.NewProc()

		var last uint64
		crashAt := ^uint64(0)
		fs.Log.OnCommit(func(n uint64) {
			last = n
			if n == crashAt {
				cd.Crash()
			}
		})
		fd, err := p.Open("/big", unix.O_CREAT|unix.O_RDWR)
		require.NoError(t, err)
		if k == 0 {
			cd.Crash()
		} else {
			crashAt = last + k
		}
		data := mkdata(5*file.MAXWRITE + 17)
		n, err := p.Write(fd, data)
		require.NoError(t, err)
		assert.Equal(t, uint64(len(data)), n, "running fs sees every chunk")
		require.True(t, cd.Crashed())

		fs = Mount(cd.Underlying(), DefaultConfig())
		p = fs.NewProc()
		got := readAll(t, p, "/big")
		assert.Equal(t, data[:k*file.MAXWRITE], got, "crash after %d chunks", k)
	}
}

func TestTimedDisk(t *testing.T) {
	d := disk.NewMemDisk(param.FSSIZE)
	Mkfs(d, param.NINODES)
	cfg := DefaultConfig()
	cfg.TimeDisk = true
	fs := Mount(d, cfg)
	p := fs.NewProc()
	require.NoError(t, p.Mkdir("/d"))

	var b bytes.Buffer
	fs.WriteOpStats(&b)
	assert.Contains(t, b.String(), "mkdir")
	assert.Contains(t, b.String(), "dev1.write")
}
