// transport.go defines the contract between the pub/sub transports and the relay core.

// Package transport defines the events delivered by a publish/subscribe
// transport and the payload encoding shared by every implementation.
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/xaionaro-go/avrelay/types"
)

// VideoHeaderSize is the size of the opaque header preceding every video payload.
const VideoHeaderSize = 15

const DefaultEventQueueSize = 64

// Event is one decoded message received from a channel.
type Event struct {
	Channel    string
	Payload    []byte
	ReceivedAt time.Time
}

func (ev Event) String() string {
	return fmt.Sprintf("Event(%s, bytes:%d)", ev.Channel, len(ev.Payload))
}

type Subscriber interface {
	// Subscribe starts delivering the events of the given channels. The returned
	// channel is closed once ctx is done or the subscription is broken.
	Subscribe(ctx context.Context, channels ...string) (<-chan Event, error)
	types.Closer
}

type Publisher interface {
	// Publish encodes the payload and sends it to the channel.
	Publish(ctx context.Context, channel string, payload []byte) error
	types.Closer
}

// DecodePayload decodes the base64 text carried on the wire.
func DecodePayload(raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	result := make([]byte, base64.StdEncoding.DecodedLen(len(raw)))
	n, err := base64.StdEncoding.Decode(result, raw)
	if err != nil {
		return nil, fmt.Errorf("unable to decode the base64 payload: %w", err)
	}
	return result[:n], nil
}

func EncodePayload(payload []byte) []byte {
	result := make([]byte, base64.StdEncoding.EncodedLen(len(payload)))
	base64.StdEncoding.Encode(result, payload)
	return result
}

// WrapVideo prepends the (zeroed) opaque header to an encoded image.
func WrapVideo(image []byte) []byte {
	result := make([]byte, VideoHeaderSize+len(image))
	copy(result[VideoHeaderSize:], image)
	return result
}
