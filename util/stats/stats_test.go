package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordReset(t *testing.T) {
	ops := make([]Op, 2)
	start := time.Now().Add(-2 * time.Millisecond)
	ops[0].Record(start)
	ops[0].Record(start)
	assert.Equal(t, uint32(2), ops[0].Count())
	assert.GreaterOrEqual(t, ops[0].MicrosPerOp(), 2000.0)
	assert.Equal(t, 0.0, ops[1].MicrosPerOp())

	s := FormatTable([]string{"a", "b"}, ops)
	assert.Contains(t, s, "a")
	assert.NotContains(t, s, "b ", "idle ops are not listed")
	assert.Contains(t, s, "total")

	ops[0].Reset()
	assert.Equal(t, uint32(0), ops[0].Count())
}

func TestMismatchedNames(t *testing.T) {
	assert.Panics(t, func() { FormatTable([]string{"a"}, nil) })
}
