// Package param holds the compile-time limits of the file system.
package param

const (
	NCPU        = 8                   // maximum number of cores sharing the inode cache
	NBUCKET     = NCPU                // inode cache buckets
	NINODE      = 50                  // inode cache slots per bucket
	NFILE       = 100                 // open files per system
	NOFILE      = 16                  // open files per process
	NDEV        = 10                  // maximum major device number
	ROOTDEV     = uint32(1)           // device number of file system root disk
	MAXOPBLOCKS = 10                  // max # of blocks any FS op writes
	LOGSIZE     = MAXOPBLOCKS * 3     // max data blocks in on-disk log
	NBUF        = 128                 // size of disk block cache
	FSSIZE      = uint64(2000)        // default size of file system in blocks
	NINODES     = uint32(200)         // default number of inodes
	NLINK_DEREF = 10                  // max symlinks followed by open
	PIPESIZE    = uint64(512)         // bytes buffered by a pipe
	CONSOLE     = 1                   // major number of the console device
	NULLDEV     = 2                   // major number of the null device
	DEFAULT_UID = uint16(0)           // owner of newly allocated inodes
	DEFAULT_GID = uint16(0)           // group of newly allocated inodes
	MAXPATH     = 4096                // longest path accepted by the system calls
)
