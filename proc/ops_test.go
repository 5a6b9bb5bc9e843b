package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpNames(t *testing.T) {
	assert := assert.New(t)

	// make sure opNames list is sensible
	assert.Equal(NOPS, len(opNames))
	assert.Equal("open", opNames[OPEN])
	assert.Equal("symlink", opNames[SYMLINK])
	assert.Equal("pipe", opNames[PIPE])
	assert.Equal("readdir", opNames[READDIR])
	// the last operation
	assert.Equal("writev", opNames[WRITEV])
}
