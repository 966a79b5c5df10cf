package ax25link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModWrapsNegative(t *testing.T) {
	assert.Equal(t, 7, mod(-1, 8))
	assert.Equal(t, 0, mod(8, 8))
	assert.Equal(t, 3, mod(3, 8))
}

func TestInWindow(t *testing.T) {
	assert.True(t, inWindow(3, 0, 4, 8))
	assert.False(t, inWindow(4, 0, 4, 8))
	assert.True(t, inWindow(1, 6, 4, 8)) // wraps past modulus
}

func TestSendBufferAssignNextOrdersByEnqueue(t *testing.T) {
	b := newSendBuffer(8, 4)
	b.enqueue([]byte("a"))
	b.enqueue([]byte("b"))

	p1, ok := b.assignNext(0)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), p1)

	p2, ok := b.assignNext(1)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), p2)

	_, ok = b.assignNext(2)
	assert.False(t, ok, "no more unsent frames")
}

func TestSendBufferFull(t *testing.T) {
	b := newSendBuffer(8, 2)
	assert.False(t, b.full())
	b.enqueue([]byte("a"))
	b.enqueue([]byte("b"))
	assert.True(t, b.full())
}

func TestSendBufferAckThroughRemovesFront(t *testing.T) {
	b := newSendBuffer(8, 4)
	b.enqueue([]byte("a"))
	b.enqueue([]byte("b"))
	b.enqueue([]byte("c"))
	b.assignNext(0)
	b.assignNext(1)
	b.assignNext(2)

	removed := b.ackThrough(0, 2, 8)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, len(b.frames))
	assert.Equal(t, 2, b.frames[0].ns)
}

func TestSendBufferResetSentFromRewindsTail(t *testing.T) {
	b := newSendBuffer(8, 4)
	b.enqueue([]byte("a"))
	b.enqueue([]byte("b"))
	b.enqueue([]byte("c"))
	b.assignNext(0)
	b.assignNext(1)
	b.assignNext(2)

	b.resetSentFrom(1)
	assert.True(t, b.frames[0].sent)
	assert.False(t, b.frames[1].sent)
	assert.False(t, b.frames[2].sent)

	// the rewound frames are unsent again, so the next transmission
	// attempt picks the oldest of them first.
	next := b.nextUnsent()
	require.NotNil(t, next)
	assert.Equal(t, []byte("b"), next.payload)
}

func TestSendBufferResetSentOneOnlyAffectsThatFrame(t *testing.T) {
	b := newSendBuffer(8, 4)
	b.enqueue([]byte("a"))
	b.enqueue([]byte("b"))
	b.assignNext(0)
	b.assignNext(1)

	b.resetSentOne(0)
	assert.False(t, b.frames[0].sent)
	assert.True(t, b.frames[1].sent)
}

func TestReceiveBufferDrainStopsAtGap(t *testing.T) {
	r := newReceiveBuffer(4)
	r.put(1, []byte("b"))
	r.put(2, []byte("c"))
	// vr's own frame (0) was never buffered: drain has nothing
	// contiguous yet.
	payloads, newVR := r.drain(0, 8)
	assert.Nil(t, payloads)
	assert.Equal(t, 0, newVR)

	r.put(0, []byte("a"))
	payloads, newVR = r.drain(0, 8)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, payloads)
	assert.Equal(t, 3, newVR)
	assert.False(t, r.has(1))
}

func TestReceiveBufferBoundedSize(t *testing.T) {
	r := newReceiveBuffer(1)
	r.put(1, []byte("a"))
	r.put(2, []byte("b")) // dropped: buffer already at maxSize
	assert.True(t, r.has(1))
	assert.False(t, r.has(2))
}
