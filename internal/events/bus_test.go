package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
)

func TestEvent_Name(t *testing.T) {
	cases := []struct {
		ev   Event
		want string
	}{
		{Event{Type: LoginSuccess, Provider: identity.ProviderGoogle}, "googleLoginSuccess"},
		{Event{Type: LoginError, Provider: identity.ProviderKakao}, "kakaoLoginError"},
		{Event{Type: LogoutSuccess, Provider: identity.ProviderGoogle}, "googleLogoutSuccess"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.ev.Name())
	}
}

func TestBus_DeliversInEmissionOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(func(ev Event) { got = append(got, "a:"+ev.Name()) })
	b.Subscribe(func(ev Event) { got = append(got, "b:"+ev.Name()) })

	b.Publish(Event{Type: LoginSuccess, Provider: identity.ProviderGoogle})
	b.Publish(Event{Type: LogoutSuccess, Provider: identity.ProviderGoogle})

	assert.Equal(t, []string{
		"a:googleLoginSuccess", "b:googleLoginSuccess",
		"a:googleLogoutSuccess", "b:googleLogoutSuccess",
	}, got)
}

func TestBus_ReentrantPublishIsQueued(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(func(ev Event) {
		got = append(got, "first:"+ev.Name())
		if ev.Type == LoginSuccess {
			b.Publish(Event{Type: LogoutSuccess, Provider: ev.Provider})
		}
	})
	b.Subscribe(func(ev Event) { got = append(got, "second:"+ev.Name()) })

	b.Publish(Event{Type: LoginSuccess, Provider: identity.ProviderKakao})

	assert.Equal(t, []string{
		"first:kakaoLoginSuccess", "second:kakaoLoginSuccess",
		"first:kakaoLogoutSuccess", "second:kakaoLogoutSuccess",
	}, got)
}

func TestBus_LateSubscriberMissesCurrentEvent(t *testing.T) {
	b := NewBus()
	var late []string
	b.Subscribe(func(ev Event) {
		if ev.Type == LoginSuccess {
			b.Subscribe(func(ev Event) { late = append(late, ev.Name()) })
		}
	})

	b.Publish(Event{Type: LoginSuccess, Provider: identity.ProviderGoogle})
	assert.Empty(t, late)

	b.Publish(Event{Type: LogoutSuccess, Provider: identity.ProviderGoogle})
	assert.Equal(t, []string{"googleLogoutSuccess"}, late)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	n := 0
	cancel := b.Subscribe(func(Event) { n++ })
	require.Equal(t, 1, b.Len())

	b.Publish(Event{Type: LoginError, Provider: identity.ProviderGoogle, Err: errors.New("x")})
	cancel()
	cancel()
	b.Publish(Event{Type: LoginError, Provider: identity.ProviderGoogle})

	assert.Equal(t, 1, n)
	assert.Equal(t, 0, b.Len())
}

func TestBus_ListenerPanicDoesNotStopDelivery(t *testing.T) {
	b := NewBus()
	delivered := false
	b.Subscribe(func(Event) { panic("boom") })
	b.Subscribe(func(Event) { delivered = true })

	assert.NotPanics(t, func() {
		b.Publish(Event{Type: LoginSuccess, Provider: identity.ProviderGoogle})
	})
	assert.True(t, delivered)
}

func TestBus_StampsTimeAndObserves(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var observed []Event
	b := NewBus(WithClock(func() time.Time { return fixed }), WithObserver(func(ev Event) {
		observed = append(observed, ev)
	}))
	var got Event
	b.Subscribe(func(ev Event) { got = ev })

	b.Publish(Event{Type: LoginSuccess, Provider: identity.ProviderGoogle})

	assert.Equal(t, fixed, got.At)
	require.Len(t, observed, 1)
	assert.Equal(t, LoginSuccess, observed[0].Type)
}

func TestBus_ConcurrentPublishersDeliverEverything(t *testing.T) {
	b := NewBus()
	var mu sync.Mutex
	count := 0
	b.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(Event{Type: LoginSuccess, Provider: identity.ProviderKakao})
		}()
	}
	wg.Wait()

	// a publisher may return before the active dispatcher drains its event
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 50
	}, time.Second, 5*time.Millisecond)
}

func TestBus_SubscribeChan(t *testing.T) {
	b := NewBus()
	ch, cancel := b.SubscribeChan(1)
	defer cancel()

	b.Publish(Event{Type: LoginSuccess, Provider: identity.ProviderGoogle})
	b.Publish(Event{Type: LogoutSuccess, Provider: identity.ProviderGoogle}) // dropped

	select {
	case ev := <-ch:
		assert.Equal(t, "googleLoginSuccess", ev.Name())
	default:
		t.Fatal("expected buffered event")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.Name())
	default:
	}
}
