// stream_id.go defines StreamID, the identity of one input of the pipeline.

package types

import "fmt"

// StreamID identifies an input stream: the video stream, or one of the
// audio sources (which are mixed downstream).
type StreamID struct {
	Kind     Kind
	SourceID int
}

func VideoStream() StreamID {
	return StreamID{Kind: KindVideo}
}

func AudioStream(sourceID int) StreamID {
	return StreamID{Kind: KindAudio, SourceID: sourceID}
}

func (id StreamID) IsValid() bool {
	switch id.Kind {
	case KindVideo:
		return id.SourceID == 0
	case KindAudio:
		return true
	default:
		return false
	}
}

// String returns "video", or "audio<id>" for an audio source.
func (id StreamID) String() string {
	switch id.Kind {
	case KindVideo:
		return id.Kind.String()
	case KindAudio:
		return fmt.Sprintf("%s%d", id.Kind, id.SourceID)
	default:
		return fmt.Sprintf("%s:%d", id.Kind, id.SourceID)
	}
}

func (id StreamID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
