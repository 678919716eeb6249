package gridfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Deadlines are enforced per stream by wrapping readers in a ctx check,
// never by mutating bucket-level state shared across requests.

func TestReaderWithContextPassesThrough(t *testing.T) {
	r := readerWithContext(context.Background(), strings.NewReader("chunked"))

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "chunked", string(data))
}

func TestReaderWithContextStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := readerWithContext(ctx, strings.NewReader("chunked"))

	_, err := io.ReadAll(r)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReaderWithContextStopsMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := readerWithContext(ctx, strings.NewReader("chunked"))

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	cancel()
	_, err = r.Read(buf)
	require.ErrorIs(t, err, context.Canceled)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestLimitedStreamClosesUnderlying(t *testing.T) {
	underlying := &closeRecorder{Reader: strings.NewReader("0123456789")}
	stream := &limitedStream{
		Reader: io.LimitReader(underlying, 4),
		closer: underlying,
	}

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "0123", string(data))

	require.NoError(t, stream.Close())
	require.True(t, underlying.closed)
}
