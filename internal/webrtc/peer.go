package webrtc

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"webcall/native/internal/domain"
	"webcall/native/internal/framecrypto"
	"webcall/native/internal/logging"
)

// keyframeInterval is how often a picture loss indication is sent on each
// incoming video track.
const keyframeInterval = 3 * time.Second

var _ domain.PeerFactory = (*Factory)(nil)
var _ domain.Peer = (*Peer)(nil)

// Options configures the pion API shared by all peers.
type Options struct {
	ICEServers []domain.ICEServer
	// UDPPortMin and UDPPortMax bound the ephemeral ports used for ICE.
	// Zero leaves the range to the OS.
	UDPPortMin uint16
	UDPPortMax uint16
	// IncludeLoopback keeps loopback candidates, for single-host setups
	// and tests.
	IncludeLoopback bool
	Logger          *zap.Logger
}

// Factory creates peers from one pion API.
type Factory struct {
	api      *pion.API
	config   pion.Configuration
	loopback bool
	logger   *zap.Logger
}

// NewFactory registers Opus and VP8 and the NACK interceptors, and applies
// the setting engine options.
func NewFactory(opts Options) (*Factory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &pion.MediaEngine{}
	if err := m.RegisterCodec(opusCodec, pion.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register Opus: %w", err)
	}
	if err := m.RegisterCodec(vp8Codec, pion.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register VP8: %w", err)
	}

	i := &interceptor.Registry{}
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)
	generatorFactory, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack generator: %w", err)
	}
	i.Add(generatorFactory)

	s := pion.SettingEngine{}
	s.LoggerFactory = logging.NewPionFactory(logger)
	if opts.UDPPortMin > 0 && opts.UDPPortMax >= opts.UDPPortMin {
		if err := s.SetEphemeralUDPPortRange(opts.UDPPortMin, opts.UDPPortMax); err != nil {
			return nil, fmt.Errorf("set udp port range %d-%d: %w", opts.UDPPortMin, opts.UDPPortMax, err)
		}
	}
	if opts.IncludeLoopback {
		s.SetIncludeLoopbackCandidate(true)
	}

	var servers []pion.ICEServer
	for _, srv := range opts.ICEServers {
		servers = append(servers, pion.ICEServer{
			URLs:       srv.URLs,
			Username:   srv.Username,
			Credential: srv.Credential,
		})
	}

	return &Factory{
		api: pion.NewAPI(
			pion.WithMediaEngine(m),
			pion.WithInterceptorRegistry(i),
			pion.WithSettingEngine(s),
		),
		config: pion.Configuration{
			ICEServers:   servers,
			BundlePolicy: pion.BundlePolicyMaxBundle,
		},
		loopback: opts.IncludeLoopback,
		logger:   logger.Named("webrtc"),
	}, nil
}

// NewPeer implements domain.PeerFactory.
func (f *Factory) NewPeer() (domain.Peer, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &Peer{
		pc:       pc,
		logger:   f.logger,
		loopback: f.loopback,
		streamID: uuid.NewString(),
		closed:   make(chan struct{}),
		failures: &rate.Sometimes{Interval: time.Second},
	}
	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		p.logger.Debug("ICE connection state", zap.String("state", state.String()))
	})
	return p, nil
}

// Peer wraps a pion PeerConnection for one call.
type Peer struct {
	pc       *pion.PeerConnection
	logger   *zap.Logger
	loopback bool
	streamID string

	closed    chan struct{}
	closeOnce sync.Once

	// failures throttles per-frame error logs.
	failures *rate.Sometimes
}

// AddLocalTracks adds an Opus track, plus a VP8 track for video calls.
// Frames written to the returned writer go through transform (when not
// nil) before being packetized.
func (p *Peer) AddLocalTracks(callMedia domain.CallMedia, transform domain.FrameTransformer) (domain.FrameWriter, error) {
	w := &localWriter{peer: p, transform: transform, tracks: make(map[domain.CallMedia]*pion.TrackLocalStaticSample)}

	kinds := []domain.CallMedia{domain.MediaAudio}
	if callMedia == domain.MediaVideo {
		kinds = append(kinds, domain.MediaVideo)
	}
	for _, kind := range kinds {
		capability := opusCodec.RTPCodecCapability
		if kind == domain.MediaVideo {
			capability = vp8Codec.RTPCodecCapability
		}
		track, err := pion.NewTrackLocalStaticSample(capability, string(kind), p.streamID)
		if err != nil {
			return nil, fmt.Errorf("create %s track: %w", kind, err)
		}
		sender, err := p.pc.AddTrack(track)
		if err != nil {
			return nil, fmt.Errorf("add %s track: %w", kind, err)
		}
		go drainRTCP(sender)
		w.tracks[kind] = track
	}
	return w, nil
}

// drainRTCP reads incoming RTCP so interceptors (NACK) keep working.
func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

type localWriter struct {
	peer      *Peer
	transform domain.FrameTransformer
	tracks    map[domain.CallMedia]*pion.TrackLocalStaticSample
}

func (w *localWriter) WriteFrame(f domain.Frame) error {
	kind := f.Kind
	callMedia, ok := kind.Media()
	if !ok {
		return fmt.Errorf("write frame: unknown frame kind")
	}
	track := w.tracks[callMedia]
	if track == nil {
		return fmt.Errorf("write frame: no %s track", callMedia)
	}
	if callMedia == domain.MediaVideo {
		// The receiver classifies from the frame tag, so the sender must too.
		kind = framecrypto.ClassifyVP8(f.Data)
	}

	data := f.Data
	if w.transform != nil {
		var err error
		data, err = w.transform.TransformFrame(kind, f.Data)
		if errors.Is(err, framecrypto.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("encrypt %s frame: %w", kind, err)
		}
	}
	return track.WriteSample(media.Sample{Data: data, Duration: f.Duration})
}

// PreferVideoCodec reorders the codecs of every video transceiver so that
// mimeType is offered first.
func (p *Peer) PreferVideoCodec(mimeType string) error {
	for _, tr := range p.pc.GetTransceivers() {
		if tr.Kind() != pion.RTPCodecTypeVideo || tr.Sender() == nil {
			continue
		}
		ordered := preferCodec(tr.Sender().GetParameters().Codecs, mimeType)
		if len(ordered) == 0 {
			continue
		}
		if err := tr.SetCodecPreferences(ordered); err != nil {
			return fmt.Errorf("set codec preferences: %w", err)
		}
	}
	return nil
}

// SetOnTrack starts a reader for every remote track. Frames are assembled
// from RTP, passed through transform (when not nil), and written to sink.
func (p *Peer) SetOnTrack(transform domain.FrameTransformer, sink domain.FrameWriter) {
	p.pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		codec := track.Codec()
		p.logger.Info("got track",
			zap.String("kind", track.Kind().String()),
			zap.String("codec", codec.MimeType),
			zap.Uint8("pt", uint8(codec.PayloadType)))
		go p.readTrack(track, transform, sink)
	})
}

func (p *Peer) readTrack(track *pion.TrackRemote, transform domain.FrameTransformer, sink domain.FrameWriter) {
	codec := track.Codec()
	var (
		depacketizer rtp.Depacketizer
		classify     func([]byte) domain.FrameKind
		video        bool
	)
	switch {
	case strings.EqualFold(codec.MimeType, pion.MimeTypeOpus):
		depacketizer = &codecs.OpusPacket{}
		classify = func([]byte) domain.FrameKind { return domain.FrameAudio }
	case strings.EqualFold(codec.MimeType, pion.MimeTypeVP8):
		depacketizer = &codecs.VP8Packet{}
		classify = framecrypto.ClassifyVP8
		video = true
		go p.requestKeyframes(track)
	default:
		p.logger.Warn("ignoring track with unsupported codec", zap.String("codec", codec.MimeType))
		return
	}

	assembler := NewFrameAssembler(depacketizer, codec.ClockRate)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			select {
			case <-p.closed:
			default:
				p.logger.Debug("track read ended", zap.String("codec", codec.MimeType), zap.Error(err))
			}
			return
		}

		for _, sample := range assembler.Push(pkt) {
			kind := classify(sample.Data)
			data := sample.Data
			if transform != nil {
				data, err = transform.TransformFrame(kind, sample.Data)
				if errors.Is(err, framecrypto.ErrClosed) {
					return
				}
				if err != nil {
					p.failures.Do(func() {
						p.logger.Warn("dropping frame", zap.Stringer("kind", kind), zap.Error(err))
					})
					if video {
						p.requestKeyframe(track.SSRC())
					}
					continue
				}
			}
			if err := sink.WriteFrame(domain.Frame{Kind: kind, Data: data, Duration: sample.Duration}); err != nil {
				p.failures.Do(func() {
					p.logger.Warn("playback rejected frame", zap.Error(err))
				})
			}
		}
	}
}

func (p *Peer) requestKeyframe(ssrc pion.SSRC) {
	err := p.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(ssrc)}})
	if err != nil {
		p.logger.Debug("send PLI", zap.Error(err))
	}
}

func (p *Peer) requestKeyframes(track *pion.TrackRemote) {
	p.requestKeyframe(track.SSRC())
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.closed:
			return
		case <-ticker.C:
			p.requestKeyframe(track.SSRC())
		}
	}
}

// SetOnICECandidate registers the callback for locally discovered ICE
// candidates. A nil candidate is passed when gathering completes.
func (p *Peer) SetOnICECandidate(f func(candidate *domain.ICECandidatePayload)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			p.logger.Debug("ICE gathering complete")
			f(nil)
			return
		}

		init := c.ToJSON()
		if !p.loopback && isLoopback(init.Candidate) {
			p.logger.Debug("filtering loopback ICE candidate")
			return
		}
		p.logger.Debug("local ICE candidate", zap.String("candidate", init.Candidate))
		f(&domain.ICECandidatePayload{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

// SetOnStateChange reports every peer connection state change. failed is
// true for the failed and disconnected states.
func (p *Peer) SetOnStateChange(f func(info domain.ConnectionInfo, failed bool)) {
	p.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.logger.Info("peer connection state", zap.String("state", state.String()))
		failed := state == pion.PeerConnectionStateFailed || state == pion.PeerConnectionStateDisconnected
		f(p.info(state), failed)
	})
}

func (p *Peer) info(state pion.PeerConnectionState) domain.ConnectionInfo {
	return domain.ConnectionInfo{
		ConnectionState:    state.String(),
		ICEConnectionState: p.pc.ICEConnectionState().String(),
		ICEGatheringState:  p.pc.ICEGatheringState().String(),
		SignalingState:     p.pc.SignalingState().String(),
	}
}

// CreateOffer creates an SDP offer. It does not set the local description.
func (p *Peer) CreateOffer() (domain.SDPPayload, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SDPPayload{}, fmt.Errorf("create offer: %w", err)
	}
	return domain.SDPPayload{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

// CreateAnswer creates an SDP answer to the remote offer.
func (p *Peer) CreateAnswer() (domain.SDPPayload, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SDPPayload{}, fmt.Errorf("create answer: %w", err)
	}
	return domain.SDPPayload{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

// SetLocalDescription applies sdp locally; ICE gathering starts here.
func (p *Peer) SetLocalDescription(sdp domain.SDPPayload) error {
	desc := pion.SessionDescription{Type: pion.NewSDPType(sdp.Type), SDP: sdp.SDP}
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	p.logger.Debug("local description set", zap.String("type", sdp.Type))
	return nil
}

// SetRemoteDescription applies the remote offer or answer.
func (p *Peer) SetRemoteDescription(sdp domain.SDPPayload) error {
	desc := pion.SessionDescription{Type: pion.NewSDPType(sdp.Type), SDP: sdp.SDP}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	p.logger.Debug("remote description set", zap.String("type", sdp.Type))
	return nil
}

// AddRemoteICECandidate adds a candidate received from the other side. The
// remote description must already be set.
func (p *Peer) AddRemoteICECandidate(candidate domain.ICECandidatePayload) error {
	init := pion.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        candidate.SDPMid,
		SDPMLineIndex: candidate.SDPMLineIndex,
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	p.logger.Debug("added remote ICE candidate")
	return nil
}

// Close shuts down the PeerConnection and stops track readers.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.pc.Close()
	})
	return err
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
