package auth

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForSDK_Immediate(t *testing.T) {
	v, err := WaitForSDK(context.Background(), func() (string, bool) { return "sdk", true }, time.Hour, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "sdk", v)
}

func TestWaitForSDK_PollsUntilPresent(t *testing.T) {
	var calls atomic.Int32
	v, err := WaitForSDK(context.Background(), func() (int, bool) {
		n := calls.Add(1)
		return 7, n >= 3
	}, time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitForSDK_Timeout(t *testing.T) {
	start := time.Now()
	_, err := WaitForSDK(context.Background(), func() (int, bool) { return 0, false }, time.Millisecond, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrInitTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForSDK_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WaitForSDK(ctx, func() (int, bool) { return 0, false }, time.Millisecond, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
