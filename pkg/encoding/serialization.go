package encoding

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// Archive is the opaque stream handed to a component type's serialize and
// deserialize hooks. The storage core never looks at its format.
type Archive interface {
	io.Reader
	io.Writer
}

var byteOrder = binary.LittleEndian

// Buffer is an in-memory Archive.
type Buffer struct {
	bytes.Buffer
}

// NewBuffer returns a Buffer reading from data.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{}
	b.Write(data)
	return b
}

func WriteUint32(ar Archive, v uint32) error {
	var buf [4]byte
	byteOrder.PutUint32(buf[:], v)
	_, err := ar.Write(buf[:])
	return err
}

func ReadUint32(ar Archive) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(ar, buf[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buf[:]), nil
}

func WriteFloat32(ar Archive, v float32) error {
	return WriteUint32(ar, math.Float32bits(v))
}

func ReadFloat32(ar Archive) (float32, error) {
	v, err := ReadUint32(ar)
	return math.Float32frombits(v), err
}

// WriteRaw writes p verbatim.
func WriteRaw(ar Archive, p []byte) error {
	_, err := ar.Write(p)
	return err
}

// ReadRaw fills p completely or fails with io.ErrUnexpectedEOF.
func ReadRaw(ar Archive, p []byte) error {
	_, err := io.ReadFull(ar, p)
	return err
}

// WriteString writes a length-prefixed string.
func WriteString(ar Archive, s string) error {
	if err := WriteUint32(ar, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(ar, s)
	return err
}

func ReadString(ar Archive) (string, error) {
	n, err := ReadUint32(ar)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err = ReadRaw(ar, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
