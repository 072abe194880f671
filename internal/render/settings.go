package render

import (
	"fmt"
	"strings"
)

// Quality is the closed set of export quality levels
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality validates a quality name
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := QualityPresets[q]; !ok {
		return "", fmt.Errorf("unknown quality %q (want low, medium or high)", s)
	}
	return q, nil
}

func (q Quality) String() string { return string(q) }

// UnmarshalText rejects values outside the enum
func (q *Quality) UnmarshalText(b []byte) error {
	v, err := ParseQuality(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// Container is the closed set of output containers
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerWebM Container = "webm"
)

// ParseContainer validates a container name
func ParseContainer(s string) (Container, error) {
	c := Container(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := CodecFallbacks[c]; !ok {
		return "", fmt.Errorf("unknown container %q (want mp4 or webm)", s)
	}
	return c, nil
}

func (c Container) String() string { return string(c) }

// UnmarshalText rejects values outside the enum
func (c *Container) UnmarshalText(b []byte) error {
	v, err := ParseContainer(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MimeType returns the mime type of files in this container
func (c Container) MimeType() string {
	if c == ContainerWebM {
		return "video/webm"
	}
	return "video/mp4"
}

// Extension returns the file extension including the dot
func (c Container) Extension() string {
	return "." + string(c)
}

// Preset is the encoder tuning for a quality level
type Preset struct {
	CRF   int    `json:"crf"`
	Speed string `json:"speed"`
}

// QualityPresets maps quality levels to encoder parameters
var QualityPresets = map[Quality]Preset{
	QualityLow:    {CRF: 28, Speed: "veryfast"},
	QualityMedium: {CRF: 23, Speed: "medium"},
	QualityHigh:   {CRF: 18, Speed: "slow"},
}

// Codec is a video/audio encoder pair
type Codec struct {
	Video string `json:"video"`
	Audio string `json:"audio"`
}

func (c Codec) String() string {
	return c.Video + "/" + c.Audio
}

// CodecFallbacks lists encoders per container in the order they are tried
var CodecFallbacks = map[Container][]Codec{
	ContainerMP4: {
		{Video: "libx264", Audio: "aac"},
		{Video: "libopenh264", Audio: "aac"},
		{Video: "mpeg4", Audio: "aac"},
	},
	ContainerWebM: {
		{Video: "libvpx-vp9", Audio: "libopus"},
		{Video: "libvpx-vp9", Audio: "libvorbis"},
		{Video: "libvpx", Audio: "libvorbis"},
	},
}

// Settings is a resolved encode configuration
type Settings struct {
	Quality   Quality   `json:"quality"`
	Container Container `json:"container"`
	Preset    Preset    `json:"preset"`
	Codec     Codec     `json:"codec"`
}

func (s Settings) String() string {
	return fmt.Sprintf("%s %s crf=%d preset=%s codec=%s",
		s.Container, s.Quality, s.Preset.CRF, s.Preset.Speed, s.Codec)
}

// Candidates expands a quality/container pair into settings, one per codec
// fallback, in try order
func Candidates(q Quality, c Container) ([]Settings, error) {
	preset, ok := QualityPresets[q]
	if !ok {
		return nil, fmt.Errorf("unknown quality %q", q)
	}
	codecs, ok := CodecFallbacks[c]
	if !ok {
		return nil, fmt.Errorf("unknown container %q", c)
	}
	out := make([]Settings, len(codecs))
	for i, codec := range codecs {
		out[i] = Settings{Quality: q, Container: c, Preset: preset, Codec: codec}
	}
	return out, nil
}
