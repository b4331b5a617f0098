package generic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_ResetOnPut(t *testing.T) {
	p := NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, func(b *bytes.Buffer) { b.Reset() })

	buf := p.Get()
	buf.WriteString("dirty")
	p.Put(buf)

	assert.Equal(t, 0, buf.Len())
	assert.NotNil(t, p.Get())
}
