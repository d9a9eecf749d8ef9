package index

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatL2_RoundTrip(t *testing.T) {
	idx := NewFlatL2(3)
	require.NoError(t, idx.Add(vec(1, 2, 3), vec(-1, 0.5, 0)))

	var buf bytes.Buffer
	n, err := idx.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	loaded, err := ReadFlatL2(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Dimension())
	assert.Equal(t, 2, loaded.Count())

	v, err := loaded.Vector(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 0.5, 0}, v)
}

func TestFlatL2_RoundTripEmpty(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewFlatL2(4).WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := ReadFlatL2(&buf)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Dimension())
	assert.Equal(t, 0, loaded.Count())
}

func TestReadFlatL2_Corrupt(t *testing.T) {
	_, err := ReadFlatL2(bytes.NewReader([]byte("nope")))
	assert.ErrorIs(t, err, ErrCorruptIndex)

	var buf bytes.Buffer
	idx := NewFlatL2(2)
	require.NoError(t, idx.Add(vec(1, 1)))
	_, err = idx.WriteTo(&buf)
	require.NoError(t, err)

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err = ReadFlatL2(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, ErrCorruptIndex)
}
