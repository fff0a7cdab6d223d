// drop_reason.go enumerates why an event was not forwarded.

package sourcetap

import "fmt"

type DropReason int

const (
	DropReasonUndefined = DropReason(iota)
	DropReasonUnbound
	DropReasonMalformed
	DropReasonFull
	DropReasonClosed
	endOfDropReason
)

func (r DropReason) String() string {
	switch r {
	case DropReasonUndefined:
		return "<undefined>"
	case DropReasonUnbound:
		return "unbound"
	case DropReasonMalformed:
		return "malformed"
	case DropReasonFull:
		return "full"
	case DropReasonClosed:
		return "closed"
	default:
		return fmt.Sprintf("<unknown:%d>", int(r))
	}
}

func (r DropReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
