package ffmpeg

import "time"

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string        `json:"filePath"`
	Duration   time.Duration `json:"duration"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	FPS        float64       `json:"fps"`
	Bitrate    int64         `json:"bitrate"`
	VideoCodec string        `json:"videoCodec"`
	HasAudio   bool          `json:"hasAudio"`
	AudioCodec string        `json:"audioCodec"`
}

// Seconds returns the duration as float seconds, the unit the editor works in
func (v *VideoInfo) Seconds() float64 {
	return v.Duration.Seconds()
}

// Progress represents one ffmpeg -progress block
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	OutTime time.Duration
	Speed   string
	Done    bool
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)
