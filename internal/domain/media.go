package domain

import (
	"fmt"
	"time"
)

// CallMedia is the media type negotiated for a call.
type CallMedia string

const (
	MediaAudio CallMedia = "audio"
	MediaVideo CallMedia = "video"
)

// ParseCallMedia validates a media type coming off the wire.
func ParseCallMedia(s string) (CallMedia, error) {
	switch CallMedia(s) {
	case MediaAudio, MediaVideo:
		return CallMedia(s), nil
	default:
		return "", fmt.Errorf("unknown call media %q", s)
	}
}

// FrameKind identifies the codec-level kind of an encoded media frame.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameAudio
	FrameVideoKey
	FrameVideoDelta
)

func (k FrameKind) String() string {
	switch k {
	case FrameAudio:
		return "audio"
	case FrameVideoKey:
		return "video-key"
	case FrameVideoDelta:
		return "video-delta"
	default:
		return "unknown"
	}
}

// Media reports which track a frame of this kind travels on.
func (k FrameKind) Media() (CallMedia, bool) {
	switch k {
	case FrameAudio:
		return MediaAudio, true
	case FrameVideoKey, FrameVideoDelta:
		return MediaVideo, true
	default:
		return "", false
	}
}

// Frame is one encoded media frame as handed over by capture or delivered
// to playback.
type Frame struct {
	Kind     FrameKind
	Data     []byte
	Duration time.Duration
}
