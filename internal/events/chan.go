package events

import "github.com/dropDatabas3/chatpal/internal/observability/logger"

// SubscribeChan bridges the bus to a buffered channel. Events that do not fit
// are dropped and logged; a slow reader never blocks the publisher.
// cancel unsubscribes; the channel is not closed so a late delivery racing
// with cancel cannot panic.
func (b *Bus) SubscribeChan(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	cancel := b.Subscribe(func(ev Event) {
		select {
		case ch <- ev:
		default:
			logger.L().Warn("dropping event for slow subscriber",
				logger.Component("events"),
				logger.Event(ev.Name()),
			)
		}
	})
	return ch, cancel
}
