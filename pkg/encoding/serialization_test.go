package encoding

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPrimitives(t *testing.T) {
	b := &Buffer{}
	require.NoError(t, WriteUint32(b, 0xCAFE))
	require.NoError(t, WriteFloat32(b, 1.5))
	require.NoError(t, WriteString(b, "velocity"))
	require.NoError(t, WriteRaw(b, []byte{1, 2, 3}))

	r := NewBuffer(b.Bytes())
	u, err := ReadUint32(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFE), u)

	f, err := ReadFloat32(r)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)

	s, err := ReadString(r)
	require.NoError(t, err)
	assert.Equal(t, "velocity", s)

	raw := make([]byte, 3)
	require.NoError(t, ReadRaw(r, raw))
	assert.Equal(t, []byte{1, 2, 3}, raw)

	_, err = ReadUint32(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRawShort(t *testing.T) {
	r := NewBuffer([]byte{1})
	err := ReadRaw(r, make([]byte, 4))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
