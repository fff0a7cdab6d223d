// kind.go defines the Kind enum (the media kind carried by a stream) and its methods.

// Package types contains the small value types shared by every relay package.
package types

import "fmt"

type Kind int

const (
	KindUndefined = Kind(iota)
	KindVideo
	KindAudio
	endOfKind
)

// Kinds returns all the valid kinds, video first.
func Kinds() []Kind {
	return []Kind{
		KindVideo,
		KindAudio,
	}
}

func (k Kind) IsValid() bool {
	return k > KindUndefined && k < endOfKind
}

// Index returns a dense index usable to address per-kind arrays.
func (k Kind) Index() int {
	return int(k) - 1
}

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "<undefined>"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for _, candidate := range Kinds() {
		if candidate.String() == string(b) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown media kind '%s'", string(b))
}

// NumKinds is the amount of valid kinds; arrays indexed by Kind.Index have this length.
const NumKinds = int(endOfKind) - 1
