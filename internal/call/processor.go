// Package call owns the single call session and drives it from host
// commands.
package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"webcall/native/internal/domain"
	"webcall/native/internal/framecrypto"
	"webcall/native/internal/ice"
	"webcall/native/internal/protocol"
	"webcall/native/internal/webrtc"
)

var (
	errAlreadyStarted         = errors.New("call already started")
	errEncryptionNotSupported = errors.New("encryption is not supported")
	errNotStarted             = errors.New("call not started")
	errLocalNotSet            = errors.New("local description is not set")
	errRemoteAlreadySet       = errors.New("remote description already set")
	errUnknownCommand         = errors.New("unknown command")
	errMediaNotInCall         = errors.New("media is not in this call")
	errCancelled              = errors.New("call setup cancelled")
)

// Notifier receives responses that are not replies to a command: late ICE
// candidates, connection state changes and Ended.
type Notifier interface {
	Notify(resp protocol.Response)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(resp protocol.Response)

func (f NotifierFunc) Notify(resp protocol.Response) { f(resp) }

// Config controls call negotiation.
type Config struct {
	// Encryption reports whether frame encryption is available.
	Encryption   bool
	ICEWait      time.Duration
	ICEExtraWait time.Duration
}

// Processor executes host commands against at most one call session.
type Processor struct {
	cfg      Config
	factory  domain.PeerFactory
	devices  domain.MediaDevices
	playback domain.FrameWriter
	notifier Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	session *session
}

// New creates an idle Processor. Call SetNotifier before use to complete
// the circular dependency with the transport that delivers responses.
func New(cfg Config, factory domain.PeerFactory, devices domain.MediaDevices, playback domain.FrameWriter, logger *zap.Logger) *Processor {
	if cfg.ICEWait <= 0 {
		cfg.ICEWait = ice.DefaultWait
	}
	if cfg.ICEExtraWait <= 0 {
		cfg.ICEExtraWait = ice.DefaultExtraWait
	}
	return &Processor{
		cfg:      cfg,
		factory:  factory,
		devices:  devices,
		playback: playback,
		logger:   logger.Named("call"),
	}
}

// SetNotifier injects the receiver of unsolicited responses. It must be
// called before the first command.
func (p *Processor) SetNotifier(n Notifier) {
	p.notifier = n
}

// Active reports whether a call session exists.
func (p *Processor) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// Process handles one command and returns its reply. Commands are handled
// one at a time, in call order.
func (p *Processor) Process(ctx context.Context, cmd protocol.Command) protocol.Response {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Debug("command", zap.String("type", cmd.CommandType()))

	var (
		resp protocol.Response
		err  error
	)
	switch c := cmd.(type) {
	case protocol.CapabilitiesCommand:
		resp = protocol.CapabilitiesResponse{Encryption: p.cfg.Encryption}
	case protocol.StartCommand:
		resp, err = p.start(ctx, c)
	case protocol.AcceptCommand:
		resp, err = p.accept(ctx, c)
	case protocol.AnswerCommand:
		resp, err = p.answer(c)
	case protocol.ICECommand:
		resp, err = p.ice(c)
	case protocol.EndCommand:
		resp, err = p.end()
	case protocol.MediaCommand:
		resp, err = p.media(c)
	case protocol.UnknownCommand:
		err = errUnknownCommand
	default:
		err = errUnknownCommand
	}
	if err != nil {
		p.logger.Info("command failed", zap.String("type", cmd.CommandType()), zap.Error(err))
		return protocol.Error(err.Error())
	}
	return resp
}

func (p *Processor) start(ctx context.Context, c protocol.StartCommand) (protocol.Response, error) {
	s, gatherer, err := p.prepare(c.Media, c.AESKey)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	offer, err := s.peer.CreateOffer()
	if err != nil {
		s.close()
		return nil, err
	}
	if err := s.peer.SetLocalDescription(offer); err != nil {
		s.close()
		return nil, err
	}
	s.localDescriptionSet = true

	immediate, extra := gatherer.Collect(s.ctx, p.cfg.ICEWait, p.cfg.ICEExtraWait)
	if s.ctx.Err() != nil {
		s.close()
		return nil, errCancelled
	}
	offerText, err := domain.EncodeSDP(offer)
	if err != nil {
		s.close()
		return nil, err
	}
	candidates, err := domain.EncodeCandidates(immediate.Candidates)
	if err != nil {
		s.close()
		return nil, err
	}

	p.commit(s, extra)
	return protocol.OfferResponse{Offer: offerText, ICECandidates: candidates}, nil
}

func (p *Processor) accept(ctx context.Context, c protocol.AcceptCommand) (protocol.Response, error) {
	if p.session != nil {
		return nil, errAlreadyStarted
	}
	offer, err := domain.DecodeSDP(c.Offer, "offer")
	if err != nil {
		return nil, err
	}
	s, gatherer, err := p.prepare(c.Media, c.AESKey)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	if err := s.peer.SetRemoteDescription(offer); err != nil {
		s.close()
		return nil, err
	}
	s.remoteDescriptionSet = true

	answer, err := s.peer.CreateAnswer()
	if err != nil {
		s.close()
		return nil, err
	}
	if err := s.peer.SetLocalDescription(answer); err != nil {
		s.close()
		return nil, err
	}
	s.localDescriptionSet = true
	s.addRemoteCandidates(c.ICECandidates)

	immediate, extra := gatherer.Collect(s.ctx, p.cfg.ICEWait, p.cfg.ICEExtraWait)
	if s.ctx.Err() != nil {
		s.close()
		return nil, errCancelled
	}

	answerText, err := domain.EncodeSDP(answer)
	if err != nil {
		s.close()
		return nil, err
	}
	candidates, err := domain.EncodeCandidates(immediate.Candidates)
	if err != nil {
		s.close()
		return nil, err
	}

	p.commit(s, extra)
	return protocol.AnswerResponse{Answer: answerText, ICECandidates: candidates}, nil
}

// prepare builds an uncommitted session: peer, gatherer, decrypt path,
// local tracks with the encrypt transform and capture. On error nothing
// is left open.
func (p *Processor) prepare(media domain.CallMedia, aesKey *string) (*session, *ice.Gatherer, error) {
	if p.session != nil {
		return nil, nil, errAlreadyStarted
	}
	if aesKey != nil && !p.cfg.Encryption {
		return nil, nil, errEncryptionNotSupported
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	s := &session{
		id:     id,
		media:  media,
		logger: p.logger.With(zap.String("session", id), zap.String("media", string(media))),
		events: make(chan stateEvent, 8),
		ctx:    ctx,
		cancel: cancel,
	}

	if aesKey != nil {
		var err error
		if s.sendCrypto, err = framecrypto.FromText(*aesKey); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("import key: %w", err)
		}
		if s.recvCrypto, err = framecrypto.FromText(*aesKey); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("import key: %w", err)
		}
	}

	peer, err := p.factory.NewPeer()
	if err != nil {
		cancel()
		return nil, nil, err
	}
	s.peer = peer

	gatherer := ice.NewGatherer(peer, s.logger.Named("ice"))
	peer.SetOnStateChange(func(info domain.ConnectionInfo, failed bool) {
		select {
		case s.events <- stateEvent{info: info, failed: failed}:
		case <-s.ctx.Done():
		}
	})

	var decrypt, encrypt domain.FrameTransformer
	if s.recvCrypto != nil {
		decrypt = s.recvCrypto.ForDecrypt()
		encrypt = s.sendCrypto.ForEncrypt()
	}
	peer.SetOnTrack(decrypt, p.playback)

	out, err := peer.AddLocalTracks(media, encrypt)
	if err != nil {
		s.close()
		return nil, nil, err
	}
	s.gate = newMediaGate(out)

	if media == domain.MediaVideo {
		if err := peer.PreferVideoCodec(webrtc.PreferredVideoCodec); err != nil {
			s.close()
			return nil, nil, err
		}
	}

	capture, err := p.devices.Open(s.ctx, media, s.gate)
	if err != nil {
		s.close()
		return nil, nil, fmt.Errorf("open media: %w", err)
	}
	s.capture = capture

	go p.watch(s)
	s.logger.Info("session created", zap.Bool("encrypted", s.sendCrypto != nil))
	return s, gatherer, nil
}

func (p *Processor) commit(s *session, extra <-chan ice.Result) {
	p.session = s
	go p.forwardExtra(s, extra)
}

// forwardExtra pushes the second ICE batch to the host when it is not
// empty.
func (p *Processor) forwardExtra(s *session, extra <-chan ice.Result) {
	for r := range extra {
		if len(r.Candidates) == 0 || s.ctx.Err() != nil {
			continue
		}
		candidates, err := domain.EncodeCandidates(r.Candidates)
		if err != nil {
			s.logger.Warn("encode extra ICE candidates", zap.Error(err))
			continue
		}
		s.logger.Debug("sending extra ICE candidates", zap.Int("count", len(candidates)))
		p.notify(protocol.ICEResponse{ICECandidates: candidates})
	}
}

// watch forwards connection state changes and ends the session when the
// connection is lost.
func (p *Processor) watch(s *session) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			p.notify(protocol.ConnectionResponse{State: ev.info})
			if ev.failed {
				p.lost(s)
				return
			}
		}
	}
}

func (p *Processor) lost(s *session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != s {
		return
	}
	s.logger.Info("connection lost, ending call")
	p.session = nil
	s.close()
	p.notify(protocol.EndedResponse{})
}

func (p *Processor) notify(resp protocol.Response) {
	if p.notifier != nil {
		p.notifier.Notify(resp)
	}
}

func (p *Processor) answer(c protocol.AnswerCommand) (protocol.Response, error) {
	s := p.session
	if s == nil {
		return nil, errNotStarted
	}
	if !s.localDescriptionSet {
		return nil, errLocalNotSet
	}
	if s.remoteDescriptionSet {
		return nil, errRemoteAlreadySet
	}

	answer, err := domain.DecodeSDP(c.Answer, "answer")
	if err == nil {
		err = s.peer.SetRemoteDescription(answer)
	}
	if err != nil {
		p.session = nil
		s.close()
		return nil, err
	}
	s.remoteDescriptionSet = true
	s.flushCandidates()
	s.addRemoteCandidates(c.ICECandidates)
	return protocol.OkResponse{}, nil
}

func (p *Processor) ice(c protocol.ICECommand) (protocol.Response, error) {
	s := p.session
	if s == nil {
		return nil, errNotStarted
	}
	s.addRemoteCandidates(c.ICECandidates)
	return protocol.OkResponse{}, nil
}

func (p *Processor) end() (protocol.Response, error) {
	s := p.session
	if s == nil {
		return nil, errNotStarted
	}
	p.session = nil
	s.close()
	return protocol.OkResponse{}, nil
}

func (p *Processor) media(c protocol.MediaCommand) (protocol.Response, error) {
	s := p.session
	if s == nil {
		return nil, errNotStarted
	}
	if c.Media == domain.MediaVideo && s.media != domain.MediaVideo {
		return nil, errMediaNotInCall
	}
	s.gate.enable(c.Media, c.Enable)
	s.logger.Info("local media toggled", zap.String("media", string(c.Media)), zap.Bool("enable", c.Enable))
	return protocol.OkResponse{}, nil
}
