// inbox.go implements the bounded queue between a transport client and the relay.

package transport

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// Inbox decodes the raw messages received by a transport client and queues
// them as events. It never blocks the client: when the queue is full the
// message is dropped.
type Inbox struct {
	locker xsync.Mutex
	ch     chan Event
	closed bool

	received  atomic.Uint64
	malformed atomic.Uint64
	dropped   atomic.Uint64
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultEventQueueSize
	}
	return &Inbox{
		ch: make(chan Event, size),
	}
}

func (i *Inbox) C() <-chan Event {
	return i.ch
}

// Deliver decodes and queues a raw (base64) message; it returns false if
// the message was dropped.
func (i *Inbox) Deliver(ctx context.Context, channel string, raw []byte) bool {
	i.received.Inc()
	payload, err := DecodePayload(raw)
	if err != nil {
		i.malformed.Inc()
		logger.Debugf(ctx, "dropping a message of %s from '%s': %v", humanize.Bytes(uint64(len(raw))), channel, err)
		return false
	}

	ev := Event{
		Channel:    channel,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
	return xsync.DoR1(ctx, &i.locker, func() bool {
		if i.closed {
			i.dropped.Inc()
			return false
		}
		select {
		case i.ch <- ev:
			return true
		default:
			i.dropped.Inc()
			logger.Debugf(ctx, "the event queue is full, dropping %s", ev)
			return false
		}
	})
}

// Close closes the channel returned by C; later deliveries are dropped.
func (i *Inbox) Close(ctx context.Context) {
	i.locker.Do(ctx, func() {
		if i.closed {
			return
		}
		i.closed = true
		close(i.ch)
	})
}

type InboxStats struct {
	Received  uint64
	Malformed uint64
	Dropped   uint64
}

func (i *Inbox) Stats() InboxStats {
	return InboxStats{
		Received:  i.received.Load(),
		Malformed: i.malformed.Load(),
		Dropped:   i.dropped.Load(),
	}
}
