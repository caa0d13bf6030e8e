package channel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iopump/pipes"
	"github.com/iopump/pipes/memory"
)

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestChannelOrdering(t *testing.T) {
	pool := memory.NewPool(memory.WithBlockSize(64))
	ch := New(pool, WithMinAlloc(32))

	rnd := rand.New(rand.NewSource(1))
	var want []byte
	chunks := make([][]byte, 100)
	for i := range chunks {
		chunk := make([]byte, 1+rnd.Intn(200))
		rnd.Read(chunk)
		chunks[i] = chunk
		want = append(want, chunk...)
	}

	go func() {
		for _, chunk := range chunks {
			if _, err := ch.Write(context.Background(), chunk); err != nil {
				ch.CompleteWriting(err)
				return
			}
		}
		ch.CompleteWriting(nil)
	}()

	ctx := testCtx(t)
	var got []byte
	buf := make([]byte, 1)
	for {
		// chop the reads with uneven buffer sizes
		buf = buf[:1+rnd.Intn(cap(buf))]
		n, err := ch.Read(ctx, buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if cap(buf) < 97 {
			buf = make([]byte, 97)
		}
	}
	require.True(t, bytes.Equal(want, got), "reader must observe the exact concatenation of commits")
}

func TestChannelReadFastPath(t *testing.T) {
	pool := memory.NewPool()
	ch := New(pool)

	cur, buf, err := ch.BeginWrite(5)
	require.NoError(t, err)
	copy(buf, "hello")
	ch.UpdateEnd(cur, 5)
	f := ch.EndWrite(cur)
	require.True(t, f.Resolved(), "commit without backpressure must resolve synchronously")
	require.NoError(t, f.Err())

	dst := make([]byte, 16)
	n, err := ch.Read(testCtx(t), dst)
	require.NoError(t, err)
	require.Equal(t, "hello", string(dst[:n]))
}

func TestChannelEndOfData(t *testing.T) {
	pool := memory.NewPool()
	ch := New(pool)

	ch.CompleteWriting(nil)

	n, err := ch.Read(testCtx(t), make([]byte, 8))
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelErrorPropagation(t *testing.T) {
	pool := memory.NewPool()
	ch := New(pool)

	boom := errors.New("native failure")
	_, err := ch.Write(context.Background(), []byte("abc"))
	require.NoError(t, err)
	ch.CompleteWriting(boom)

	dst := make([]byte, 8)
	n, err := ch.Read(testCtx(t), dst)
	require.NoError(t, err, "pending bytes drain before the error surfaces")
	require.Equal(t, "abc", string(dst[:n]))

	_, err = ch.Read(testCtx(t), dst)
	require.ErrorIs(t, err, boom)
}

func TestChannelWakesParkedReader(t *testing.T) {
	pool := memory.NewPool()
	ch := New(pool)

	type result struct {
		n   int
		err error
	}
	res := make(chan result, 1)
	ctx := testCtx(t)
	go func() {
		dst := make([]byte, 8)
		n, err := ch.Read(ctx, dst)
		res <- result{n, err}
	}()

	// let the reader park, then commit
	time.Sleep(20 * time.Millisecond)
	_, err := ch.Write(context.Background(), []byte("wake"))
	require.NoError(t, err)

	select {
	case r := <-res:
		require.NoError(t, r.err)
		require.Equal(t, 4, r.n)
	case <-time.After(5 * time.Second):
		t.Fatal("reader stayed parked after a commit")
	}
}

func TestChannelBackpressureRoundTrip(t *testing.T) {
	pool := memory.NewPool(memory.WithBlockSize(8192))
	ch := New(pool, WithHighWaterMark(4096), WithLowWaterMark(1024))

	// one 5000-byte commit: over the high-water mark, completion pending
	cur, buf, err := ch.BeginWrite(5000)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(buf), 5000)
	for i := 0; i < 5000; i++ {
		buf[i] = byte(i)
	}
	ch.UpdateEnd(cur, 5000)
	f := ch.EndWrite(cur)
	require.False(t, f.Resolved(), "5000 pending > H=4096 must leave the token pending")

	// drain 4200: pending falls to 800 <= L=1024, the token resolves
	dst := make([]byte, 4200)
	n, err := ch.Read(testCtx(t), dst)
	require.NoError(t, err)
	require.Equal(t, 4200, n)
	require.Equal(t, 800, ch.Pending())
	require.True(t, f.Resolved())
	require.NoError(t, f.Err())
}

func TestChannelBackpressureHoldsAboveLowWater(t *testing.T) {
	pool := memory.NewPool(memory.WithBlockSize(8192))
	ch := New(pool, WithHighWaterMark(4096), WithLowWaterMark(1024))

	cur, buf, _ := ch.BeginWrite(5000)
	copy(buf, bytes.Repeat([]byte("x"), 5000))
	ch.UpdateEnd(cur, 5000)
	f := ch.EndWrite(cur)

	// 5000 -> 3000 pending: under H but still above L, token stays pending
	_, err := ch.Read(testCtx(t), make([]byte, 2000))
	require.NoError(t, err)
	require.False(t, f.Resolved())

	_, err = ch.Read(testCtx(t), make([]byte, 2000))
	require.NoError(t, err)
	require.True(t, f.Resolved(), "pending 1000 <= L=1024 must resolve the token")
}

func TestChannelSingleOutstandingOps(t *testing.T) {
	pool := memory.NewPool()
	ch := New(pool)

	_, _, err := ch.BeginWrite(16)
	require.NoError(t, err)
	_, _, err = ch.BeginWrite(16)
	require.ErrorIs(t, err, pipes.ErrConcurrentWrite)

	parked := make(chan struct{})
	go func() {
		close(parked)
		_, _ = ch.Read(context.Background(), make([]byte, 8))
	}()
	<-parked
	time.Sleep(20 * time.Millisecond)

	_, err = ch.Read(testCtx(t), make([]byte, 8))
	require.ErrorIs(t, err, pipes.ErrConcurrentRead)

	ch.CompleteWriting(nil) // release the parked reader
}

func TestChannelWriteAfterComplete(t *testing.T) {
	pool := memory.NewPool()
	ch := New(pool)

	ch.CompleteWriting(nil)
	_, _, err := ch.BeginWrite(8)
	require.ErrorIs(t, err, pipes.ErrWritingCompleted)

	_, err = ch.Write(context.Background(), []byte("late"))
	require.ErrorIs(t, err, pipes.ErrWritingCompleted)
}

func TestChannelConsumerAbortReachesProducer(t *testing.T) {
	pool := memory.NewPool()
	ch := New(pool)

	abort := errors.New("filter gave up")
	ch.CompleteReading(abort)

	_, err := ch.Write(context.Background(), []byte("into the void"))
	require.ErrorIs(t, err, abort)
}

func TestChannelConsumerAbortResolvesPendingFlush(t *testing.T) {
	pool := memory.NewPool(memory.WithBlockSize(8192))
	ch := New(pool, WithHighWaterMark(64), WithLowWaterMark(16))

	cur, buf, _ := ch.BeginWrite(128)
	copy(buf, bytes.Repeat([]byte("y"), 128))
	ch.UpdateEnd(cur, 128)
	f := ch.EndWrite(cur)
	require.False(t, f.Resolved())

	abort := errors.New("consumer died")
	ch.CompleteReading(abort)

	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("flush token not resolved by CompleteReading")
	}
	require.ErrorIs(t, f.Err(), abort)
}

func TestChannelReadCancel(t *testing.T) {
	pool := memory.NewPool()
	ch := New(pool)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := ch.Read(ctx, make([]byte, 8))
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("canceled read never returned")
	}

	// the half is still usable after a canceled read
	_, err := ch.Write(context.Background(), []byte("ok"))
	require.NoError(t, err)
	dst := make([]byte, 8)
	n, err := ch.Read(testCtx(t), dst)
	require.NoError(t, err)
	require.Equal(t, "ok", string(dst[:n]))
}

func TestChannelTerminalReleasesChain(t *testing.T) {
	pool := memory.NewPool(memory.WithBlockSize(16), memory.WithMaxCached(8))
	ch := New(pool)

	_, err := ch.Write(context.Background(), []byte("leftover bytes"))
	require.NoError(t, err)

	ch.CompleteWriting(nil)
	ch.CompleteReading(nil)

	st := pool.Stats()
	require.Equal(t, st.Rents, st.Returns, "terminal channel must hand every block back")
	require.Equal(t, 0, ch.Pending())
}
