package generic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_ResetOnPut(t *testing.T) {
	p := NewPool(func() *bytes.Buffer { return &bytes.Buffer{} }, (*bytes.Buffer).Reset)

	b := p.Get()
	b.WriteString("slab")
	p.Put(b)
	assert.Zero(t, b.Len())

	assert.NotNil(t, p.Get())
}
