package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(16, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l, cancel
}

func TestTasksRunInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	var snapshot []int
	require.NoError(t, l.Do(context.Background(), func() error {
		snapshot = append(snapshot, got...)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, snapshot)
}

func TestDoReturnsTaskError(t *testing.T) {
	l, _ := startLoop(t)
	want := errors.New("boom")

	err := l.Do(context.Background(), func() error { return want })
	assert.ErrorIs(t, err, want)
}

func TestPanicDoesNotKillLoop(t *testing.T) {
	l, _ := startLoop(t)

	l.Post(func() { panic("bad task") })
	err := l.Do(context.Background(), func() error { return nil })
	assert.NoError(t, err)
}

func TestDoAfterStop(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()
	<-l.Done()

	err := l.Do(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrStopped)

	// Post after stop must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			l.Post(func() {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post blocked after loop stopped")
	}
}

func TestConcurrentPostersAreSerialised(t *testing.T) {
	l, _ := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var got int
	require.NoError(t, l.Do(context.Background(), func() error {
		got = counter
		return nil
	}))
	assert.Equal(t, 800, got)
}
