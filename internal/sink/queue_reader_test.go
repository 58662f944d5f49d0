package sink

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmTrack(id string, data []byte) *track {
	// 1 byte per second keeps position math trivial in tests.
	return &track{id: id, r: bytes.NewReader(data), bytesPerSecond: 1}
}

func TestQueueReaderCrossesTrackBoundary(t *testing.T) {
	q := newQueueReader()
	q.push(pcmTrack("t1", []byte("aaaa")))
	q.push(pcmTrack("t2", []byte("bbbb")))

	got := make([]byte, 0, 8)
	buf := make([]byte, 3)
	for len(got) < 8 {
		n, err := q.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}

	assert.Equal(t, []byte("aaaabbbb"), got)
	// t2 stays queued until a Read observes its EOF.
	assert.Equal(t, 1, q.len())
}

func TestQueueReaderLenAndDrop(t *testing.T) {
	q := newQueueReader()
	q.push(pcmTrack("t1", []byte("aa")))
	q.push(pcmTrack("t2", []byte("bb")))
	require.Equal(t, 2, q.len())

	q.dropFront()
	assert.Equal(t, 1, q.len())

	q.clear()
	assert.Equal(t, 0, q.len())
}

func TestQueueReaderFrontPosition(t *testing.T) {
	q := newQueueReader()
	q.push(pcmTrack("t1", []byte("aaaa")))

	buf := make([]byte, 2)
	_, err := q.Read(buf)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, q.frontPosition())
}

func TestQueueReaderSeekFrontDiscards(t *testing.T) {
	q := newQueueReader()
	q.push(pcmTrack("t1", []byte("abcdef")))

	require.NoError(t, q.seekFront(3*time.Second))
	assert.Equal(t, 3*time.Second, q.frontPosition())

	buf := make([]byte, 3)
	n, err := q.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "def", string(buf[:n]))
}

func TestQueueReaderSeekBackwardIsNoop(t *testing.T) {
	q := newQueueReader()
	tr := pcmTrack("t1", []byte("abcdef"))
	q.push(tr)

	buf := make([]byte, 4)
	_, err := q.Read(buf)
	require.NoError(t, err)

	require.NoError(t, q.seekFront(1*time.Second))
	assert.Equal(t, 4*time.Second, q.frontPosition())
}

func TestQueueReaderCloseUnblocks(t *testing.T) {
	q := newQueueReader()
	done := make(chan error, 1)
	go func() {
		_, err := q.Read(make([]byte, 4))
		done <- err
	}()

	q.close()

	select {
	case err := <-done:
		assert.Equal(t, io.EOF, err)
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock on close")
	}
}
