package dcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartFallsBack(t *testing.T) {
	dc := MkDcache()
	assert.Equal(t, uint64(0), dc.Start(5, 256, 4096), "empty hint")

	dc.Record(5, 512)
	assert.Equal(t, uint64(768), dc.Start(5, 256, 4096))
	assert.Equal(t, uint64(0), dc.Start(6, 256, 4096), "other inum")
	assert.Equal(t, uint64(0), dc.Start(5, 256, 768), "past end")

	dc.Reset()
	assert.Equal(t, uint64(0), dc.Start(5, 256, 4096))
}
