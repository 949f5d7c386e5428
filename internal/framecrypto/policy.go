package framecrypto

import "webcall/native/internal/domain"

// Cleartext prefix lengths. A VP8 keyframe keeps its 10-byte uncompressed
// data chunk (frame tag, start code, dimensions), a delta frame its 3-byte
// frame tag, and an Opus packet its TOC byte.
const (
	vp8KeyPrefix   = 10
	vp8DeltaPrefix = 3
	opusPrefix     = 1
)

// PrefixLength returns how many leading bytes of a frame of the given kind
// stay unencrypted. Unknown kinds are encrypted in full.
func PrefixLength(kind domain.FrameKind) int {
	switch kind {
	case domain.FrameVideoKey:
		return vp8KeyPrefix
	case domain.FrameVideoDelta:
		return vp8DeltaPrefix
	case domain.FrameAudio:
		return opusPrefix
	default:
		return 0
	}
}

// ClassifyVP8 derives the frame kind from the VP8 frame tag. The P bit is
// the lowest bit of the first byte and is clear for keyframes.
func ClassifyVP8(data []byte) domain.FrameKind {
	if len(data) == 0 {
		return domain.FrameUnknown
	}
	if data[0]&0x01 == 0 {
		return domain.FrameVideoKey
	}
	return domain.FrameVideoDelta
}
