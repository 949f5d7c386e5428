package domain

import (
	"context"
	"io"
)

// FrameTransformer rewrites the payload of one encoded frame. Encrypt and
// decrypt transforms both implement it.
type FrameTransformer interface {
	TransformFrame(kind FrameKind, data []byte) ([]byte, error)
}

// FrameWriter accepts encoded frames. Local capture writes into the
// peer's send path; the peer writes decoded remote frames into playback.
type FrameWriter interface {
	WriteFrame(frame Frame) error
}

// MediaDevices acquires local capture for a call. Open fails when capture
// is unavailable or denied.
type MediaDevices interface {
	Open(ctx context.Context, media CallMedia, out FrameWriter) (io.Closer, error)
}

// ConnectionInfo is a snapshot of the peer connection states.
type ConnectionInfo struct {
	ConnectionState    string `json:"connectionState"`
	ICEConnectionState string `json:"iceConnectionState"`
	ICEGatheringState  string `json:"iceGatheringState"`
	SignalingState     string `json:"signalingState"`
}

// Peer manages the WebRTC peer connection of a single call.
type Peer interface {
	AddLocalTracks(media CallMedia, transform FrameTransformer) (FrameWriter, error)
	PreferVideoCodec(mimeType string) error
	SetOnTrack(transform FrameTransformer, sink FrameWriter)
	SetOnICECandidate(f func(candidate *ICECandidatePayload))
	SetOnStateChange(f func(info ConnectionInfo, failed bool))
	CreateOffer() (SDPPayload, error)
	CreateAnswer() (SDPPayload, error)
	SetLocalDescription(sdp SDPPayload) error
	SetRemoteDescription(sdp SDPPayload) error
	AddRemoteICECandidate(candidate ICECandidatePayload) error
	Close() error
}

// PeerFactory creates a fresh Peer for each call.
type PeerFactory interface {
	NewPeer() (Peer, error)
}
