package values

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemstate/core/internal/itemid"
)

func TestValueRoundTripAccessors(t *testing.T) {
	s := NewString("hello")
	got, ok := s.AsString()
	require.True(t, ok)
	assert.Equal(t, "hello", got)
	_, ok = s.AsBoolean()
	assert.False(t, ok)

	b := NewBoolean(true)
	gb, ok := b.AsBoolean()
	require.True(t, ok)
	assert.True(t, gb)

	l := NewLong(42)
	gl, ok := l.AsLong()
	require.True(t, ok)
	assert.Equal(t, int64(42), gl)

	d := NewDouble(3.14)
	gd, ok := d.AsDouble()
	require.True(t, ok)
	assert.InDelta(t, 3.14, gd, 0.0001)

	now := time.Now().UTC()
	dt := NewDate(now)
	gdt, ok := dt.AsDate()
	require.True(t, ok)
	assert.True(t, now.Equal(gdt))

	name := itemid.NewQName("", "rep:root")
	n := NewName(name)
	gn, ok := n.AsName()
	require.True(t, ok)
	assert.Equal(t, name, gn)

	target := uuid.New()
	ref := NewReference(target)
	gr, ok := ref.AsReference()
	require.True(t, ok)
	assert.Equal(t, target, gr)

	bin := NewBinary([]byte{1, 2, 3})
	gbin, ok := bin.AsBinary()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, gbin)
}

func TestValueBinaryIsCopied(t *testing.T) {
	src := []byte{1, 2, 3}
	v := NewBinary(src)
	src[0] = 99

	got, _ := v.AsBinary()
	assert.Equal(t, byte(1), got[0], "NewBinary must copy its input")

	got[1] = 77
	got2, _ := v.AsBinary()
	assert.Equal(t, byte(2), got2[1], "AsBinary must return a copy")
}

func TestValueEqual(t *testing.T) {
	assert.True(t, NewString("a").Equal(NewString("a")))
	assert.False(t, NewString("a").Equal(NewString("b")))
	assert.False(t, NewString("a").Equal(NewLong(1)))
	assert.True(t, NewBinary([]byte{1, 2}).Equal(NewBinary([]byte{1, 2})))
	assert.False(t, NewBinary([]byte{1, 2}).Equal(NewBinary([]byte{1, 3})))
}

func TestValueTypeString(t *testing.T) {
	assert.Equal(t, "STRING", TypeString.String())
	assert.Equal(t, "REFERENCE", TypeReference.String())
	assert.Equal(t, "NAME", TypeName.String())
	assert.Equal(t, "UNDEFINED", TypeUndefined.String())
}
