package async

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func loggedContext(out *syncBuffer) context.Context {
	return observability.WithLogger(context.Background(), observability.NewLogger(observability.DebugLevel, out))
}

func TestSafeGo_Success(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo did not execute function")
	}
}

func TestSafeGo_LogsError(t *testing.T) {
	out := &syncBuffer{}

	SafeGo(loggedContext(out), time.Second, "notify", func(ctx context.Context) error {
		return errors.New("smtp down")
	})

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("smtp down"))
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "notify")
}

func TestSafeGo_Timeout(t *testing.T) {
	cancelled := make(chan struct{})

	SafeGo(context.Background(), 20*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled after timeout")
	}
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	out := &syncBuffer{}

	SafeGo(loggedContext(out), time.Second, "explosive", func(ctx context.Context) error {
		panic("boom")
	})

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("PANIC recovered"))
	}, time.Second, 10*time.Millisecond)
}

func TestSafeGoNoError(t *testing.T) {
	var ran atomic.Bool
	done := make(chan struct{})

	SafeGoNoError(context.Background(), time.Second, "warm", func(ctx context.Context) {
		ran.Store(true)
		close(done)
	})

	<-done
	assert.True(t, ran.Load())
}

func TestGroup_Wait(t *testing.T) {
	g := NewGroup(time.Second)
	g.Go(func(ctx context.Context) error { return nil })
	g.Go(func(ctx context.Context) error { return errors.New("second failed") })
	g.Go(func(ctx context.Context) error { panic("third panicked") })

	errs := g.Wait(context.Background())
	require.Len(t, errs, 3)

	assert.NoError(t, errs[0])
	assert.EqualError(t, errs[1], "second failed")

	var pe *PanicError
	require.ErrorAs(t, errs[2], &pe)
	assert.Equal(t, "third panicked", pe.Value)
}

func TestGroup_SharedTimeout(t *testing.T) {
	g := NewGroup(20 * time.Millisecond)
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	errs := g.Wait(context.Background())
	assert.ErrorIs(t, errs[0], context.DeadlineExceeded)
}
