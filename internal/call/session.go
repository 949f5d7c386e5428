package call

import (
	"context"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"webcall/native/internal/domain"
	"webcall/native/internal/framecrypto"
)

type stateEvent struct {
	info   domain.ConnectionInfo
	failed bool
}

// session is the single active call. Its fields are guarded by the
// processor mutex; the gate and the crypto transforms are also used from
// media goroutines and are safe for that.
type session struct {
	id     string
	peer   domain.Peer
	media  domain.CallMedia
	logger *zap.Logger

	sendCrypto *framecrypto.Transform
	recvCrypto *framecrypto.Transform

	gate    *mediaGate
	capture io.Closer

	localDescriptionSet  bool
	remoteDescriptionSet bool
	pendingCandidates    []domain.ICECandidatePayload

	events chan stateEvent

	ctx    context.Context
	cancel context.CancelFunc
}

// addRemoteCandidates applies serialized remote candidates, queueing them
// while no remote description is set. Bad candidates are logged and
// skipped.
func (s *session) addRemoteCandidates(texts []string) {
	for _, text := range texts {
		c, err := domain.DecodeCandidate(text)
		if err != nil {
			s.logger.Warn("ignoring remote ICE candidate", zap.Error(err))
			continue
		}
		if !s.remoteDescriptionSet {
			s.pendingCandidates = append(s.pendingCandidates, c)
			continue
		}
		s.addCandidate(c)
	}
}

// flushCandidates applies the candidates queued before the remote
// description was set.
func (s *session) flushCandidates() {
	pending := s.pendingCandidates
	s.pendingCandidates = nil
	if len(pending) > 0 {
		s.logger.Debug("applying queued remote ICE candidates", zap.Int("count", len(pending)))
	}
	for _, c := range pending {
		s.addCandidate(c)
	}
}

func (s *session) addCandidate(c domain.ICECandidatePayload) {
	if err := s.peer.AddRemoteICECandidate(c); err != nil {
		s.logger.Warn("add remote ICE candidate", zap.Error(err))
	}
}

// close releases everything the session owns. The transforms become inert
// first so in-flight frames are dropped silently.
func (s *session) close() {
	s.cancel()
	if s.sendCrypto != nil {
		s.sendCrypto.Close()
	}
	if s.recvCrypto != nil {
		s.recvCrypto.Close()
	}
	if s.capture != nil {
		if err := s.capture.Close(); err != nil {
			s.logger.Warn("close capture", zap.Error(err))
		}
	}
	if err := s.peer.Close(); err != nil {
		s.logger.Warn("close peer", zap.Error(err))
	}
	s.logger.Info("session closed")
}

// mediaGate sits between capture and the peer's send path and drops
// frames of disabled media.
type mediaGate struct {
	out   domain.FrameWriter
	audio atomic.Bool
	video atomic.Bool
}

func newMediaGate(out domain.FrameWriter) *mediaGate {
	g := &mediaGate{out: out}
	g.audio.Store(true)
	g.video.Store(true)
	return g
}

func (g *mediaGate) enable(m domain.CallMedia, on bool) {
	if m == domain.MediaVideo {
		g.video.Store(on)
		return
	}
	g.audio.Store(on)
}

func (g *mediaGate) WriteFrame(f domain.Frame) error {
	m, ok := f.Kind.Media()
	if !ok {
		return nil
	}
	if (m == domain.MediaVideo && !g.video.Load()) || (m == domain.MediaAudio && !g.audio.Load()) {
		return nil
	}
	return g.out.WriteFrame(f)
}
