// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package remote

import (
	"sync"
	"time"

	"github.com/soothill/wifi-tv-remote/pkg/logger"
	"github.com/soothill/wifi-tv-remote/pkg/metrics"
)

// DefaultEventBuffer is used when Subscribe is given a non-positive size.
const DefaultEventBuffer = 16

// Subscribe registers for controller events. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	ch := make(chan Event, buffer)

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// publish sends an event to every subscriber without blocking.
func (c *Controller) publish(t EventType, button string) {
	ev := Event{
		Type:      t,
		State:     c.State(),
		Button:    button,
		Timestamp: time.Now(),
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			metrics.EventsDropped.Inc()
			logger.Debug().
				Uint64("subscriber", id).
				Str("event", string(t)).
				Msg("Dropped event for slow subscriber")
		}
	}
}
