package simd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskEqualUint32_Small(t *testing.T) {
	values := []uint32{1, 2, 3, 2, 2}
	mask := make([]uint8, len(values))

	count := MaskEqualUint32(values, 2, mask)

	assert.Equal(t, 3, count)
	assert.Equal(t, []uint8{0, 1, 0, 1, 1}, mask)
}

func TestMaskEqualUint32_LargeBatchMatchesScalar(t *testing.T) {
	values := make([]uint32, 1000)
	for i := range values {
		values[i] = uint32(i % 7)
	}

	maskFast := make([]uint8, len(values))
	maskScalar := make([]uint8, len(values))

	countFast := MaskEqualUint32(values, 3, maskFast)
	countScalar := maskEqualScalar(values, 3, maskScalar)

	require.Equal(t, countScalar, countFast)
	assert.Equal(t, maskScalar, maskFast)
}

func TestMaskEqualUint32_MaskTooShort(t *testing.T) {
	values := []uint32{1, 2, 3}
	mask := make([]uint8, 2)

	assert.Equal(t, 0, MaskEqualUint32(values, 2, mask))
}

func TestMaskEqualUint32_Empty(t *testing.T) {
	assert.Equal(t, 0, MaskEqualUint32(nil, 5, nil))
}

func TestCountEqualUint32(t *testing.T) {
	values := []uint32{5, 5, 1, 5}
	assert.Equal(t, 3, CountEqualUint32(values, 5))
	assert.Equal(t, 0, CountEqualUint32(values, 9))
}

func TestMaskEqualUint32_UnrolledRemainder(t *testing.T) {
	// length not divisible by the unroll factor
	values := make([]uint32, MinBatchSize+3)
	values[len(values)-1] = 42
	mask := make([]uint8, len(values))

	count := MaskEqualUint32(values, 42, mask)

	assert.Equal(t, 1, count)
	assert.Equal(t, uint8(1), mask[len(values)-1])
}
