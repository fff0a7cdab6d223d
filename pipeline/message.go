// message.go defines the messages posted on the pipeline bus.

package pipeline

import "fmt"

type MessageType int

const (
	MessageTypeUndefined = MessageType(iota)
	MessageTypeEOS
	MessageTypeError
	MessageTypeWarning
	MessageTypeStateChanged
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeUndefined:
		return "<undefined>"
	case MessageTypeEOS:
		return "eos"
	case MessageTypeError:
		return "error"
	case MessageTypeWarning:
		return "warning"
	case MessageTypeStateChanged:
		return "state_changed"
	default:
		return fmt.Sprintf("<unknown:%d>", int(t))
	}
}

type Message struct {
	Type   MessageType
	Source string
	Err    error
	Debug  string
}

func (m Message) String() string {
	switch {
	case m.Err != nil:
		return fmt.Sprintf("Message(%s from '%s': %v)", m.Type, m.Source, m.Err)
	default:
		return fmt.Sprintf("Message(%s from '%s')", m.Type, m.Source)
	}
}
