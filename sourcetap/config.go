// config.go defines the channel bindings of the tap.

package sourcetap

import (
	"fmt"
	"strconv"

	"github.com/xaionaro-go/avrelay/types"
)

const (
	DefaultVideoChannel       = "return-video-feed"
	DefaultAudioChannelPrefix = "return-audio-feed-"
)

type Config struct {
	VideoChannel       string `yaml:"video"`
	AudioChannelPrefix string `yaml:"audio_prefix"`
	AudioSourceIDs     []int  `yaml:"audio_source_ids"`
}

func DefaultConfig() Config {
	return Config{
		VideoChannel:       DefaultVideoChannel,
		AudioChannelPrefix: DefaultAudioChannelPrefix,
		AudioSourceIDs:     []int{1},
	}
}

func (cfg Config) Validate() error {
	if cfg.VideoChannel == "" {
		return fmt.Errorf("the video channel is not set")
	}
	if len(cfg.AudioSourceIDs) == 0 {
		return fmt.Errorf("no audio sources are configured")
	}
	m := map[string]struct{}{}
	for _, b := range cfg.Bindings() {
		if _, ok := m[b.Channel]; ok {
			return fmt.Errorf("channel '%s' is bound twice", b.Channel)
		}
		m[b.Channel] = struct{}{}
	}
	return nil
}

// Binding maps a transport channel to a media kind and (for audio) a source id.
type Binding struct {
	Channel  string
	Kind     types.Kind
	SourceID int
}

// Stream returns the stream the frames of the binding are forwarded to.
func (b Binding) Stream() types.StreamID {
	if b.Kind == types.KindVideo {
		return types.VideoStream()
	}
	return types.AudioStream(b.SourceID)
}

func (cfg Config) Bindings() []Binding {
	result := []Binding{{
		Channel: cfg.VideoChannel,
		Kind:    types.KindVideo,
	}}
	for _, id := range cfg.AudioSourceIDs {
		result = append(result, Binding{
			Channel:  cfg.AudioChannelPrefix + strconv.Itoa(id),
			Kind:     types.KindAudio,
			SourceID: id,
		})
	}
	return result
}
