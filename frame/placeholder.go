// placeholder.go builds the deterministic frames used when no real data is available.

package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/xaionaro-go/avrelay/types"
)

const (
	DefaultPlaceholderSamples = 1024
	DefaultBlankJPEGQuality   = 75
)

// NewSilence returns an all-zero PCM frame of the given amount of samples per channel.
func NewSilence(format AudioFormat, samples int) *Frame {
	if samples <= 0 {
		samples = DefaultPlaceholderSamples
	}
	return &Frame{
		Kind:        types.KindAudio,
		Payload:     make([]byte, samples*format.FrameSize()),
		SampleCount: samples,
	}
}

// BlankJPEG renders a black image of the given size as JPEG.
func BlankJPEG(width, height, quality int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(quality)(&buf, img); err != nil {
		return nil, fmt.Errorf("unable to encode the blank image: %w", err)
	}
	return buf.Bytes(), nil
}

// NewBlankVideo returns a video frame with a pre-rendered image: the file
// at imagePath if it is set, otherwise a black JPEG of the given size.
func NewBlankVideo(width, height int, imagePath string) (*Frame, error) {
	if imagePath != "" {
		payload, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, fmt.Errorf("unable to read the placeholder image '%s': %w", imagePath, err)
		}
		return NewVideo(payload, time.Time{}), nil
	}

	payload, err := BlankJPEG(width, height, DefaultBlankJPEGQuality)
	if err != nil {
		return nil, err
	}
	return NewVideo(payload, time.Time{}), nil
}
