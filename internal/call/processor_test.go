package call

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"webcall/native/internal/domain"
	"webcall/native/internal/framecrypto"
	"webcall/native/internal/keycodec"
	"webcall/native/internal/protocol"
)

func candidate(text string) domain.ICECandidatePayload {
	mid := "0"
	var idx uint16
	return domain.ICECandidatePayload{Candidate: text, SDPMid: &mid, SDPMLineIndex: &idx}
}

func candidateText(t *testing.T, text string) string {
	t.Helper()
	out, err := domain.EncodeCandidates([]domain.ICECandidatePayload{candidate(text)})
	require.NoError(t, err)
	return out[0]
}

func sdpText(t *testing.T, typ string) string {
	t.Helper()
	text, err := domain.EncodeSDP(domain.SDPPayload{Type: typ, SDP: "v=0\r\n" + typ})
	require.NoError(t, err)
	return text
}

// recordingWriter collects frames written to it.
type recordingWriter struct {
	mu     sync.Mutex
	frames []domain.Frame
}

func (w *recordingWriter) WriteFrame(f domain.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, f)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

// mockPeer records calls for verification. Candidates are emitted when the
// local description is set.
type mockPeer struct {
	candidates []domain.ICECandidatePayload
	complete   bool
	late       *domain.ICECandidatePayload
	lateAfter  time.Duration

	failLocal  error
	failRemote error
	failTracks error

	mu            sync.Mutex
	onCandidate   func(*domain.ICECandidatePayload)
	onState       func(domain.ConnectionInfo, bool)
	sendTransform domain.FrameTransformer
	recvTransform domain.FrameTransformer
	localTracks   *recordingWriter
	preferred     string
	local         []domain.SDPPayload
	remote        []domain.SDPPayload
	added         []string
	closed        bool
}

func (m *mockPeer) AddLocalTracks(media domain.CallMedia, transform domain.FrameTransformer) (domain.FrameWriter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTracks != nil {
		return nil, m.failTracks
	}
	m.sendTransform = transform
	m.localTracks = &recordingWriter{}
	return m.localTracks, nil
}

func (m *mockPeer) PreferVideoCodec(mimeType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferred = mimeType
	return nil
}

func (m *mockPeer) SetOnTrack(transform domain.FrameTransformer, sink domain.FrameWriter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recvTransform = transform
}

func (m *mockPeer) SetOnICECandidate(f func(*domain.ICECandidatePayload)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCandidate = f
}

func (m *mockPeer) SetOnStateChange(f func(domain.ConnectionInfo, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = f
}

func (m *mockPeer) CreateOffer() (domain.SDPPayload, error) {
	return domain.SDPPayload{Type: "offer", SDP: "v=0\r\nlocal-offer"}, nil
}

func (m *mockPeer) CreateAnswer() (domain.SDPPayload, error) {
	return domain.SDPPayload{Type: "answer", SDP: "v=0\r\nlocal-answer"}, nil
}

func (m *mockPeer) SetLocalDescription(sdp domain.SDPPayload) error {
	if m.failLocal != nil {
		return m.failLocal
	}
	m.mu.Lock()
	m.local = append(m.local, sdp)
	emit := m.onCandidate
	m.mu.Unlock()

	for i := range m.candidates {
		c := m.candidates[i]
		emit(&c)
	}
	if m.complete {
		emit(nil)
	}
	if m.late != nil {
		late := *m.late
		time.AfterFunc(m.lateAfter, func() { emit(&late) })
	}
	return nil
}

func (m *mockPeer) SetRemoteDescription(sdp domain.SDPPayload) error {
	if m.failRemote != nil {
		return m.failRemote
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remote = append(m.remote, sdp)
	return nil
}

func (m *mockPeer) AddRemoteICECandidate(c domain.ICECandidatePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, c.Candidate)
	return nil
}

func (m *mockPeer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockPeer) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockPeer) addedCandidates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.added...)
}

func (m *mockPeer) emitState(state string, failed bool) {
	m.mu.Lock()
	f := m.onState
	m.mu.Unlock()
	f(domain.ConnectionInfo{ConnectionState: state}, failed)
}

// mockFactory hands out prepared peers in order, then default ones.
type mockFactory struct {
	mu      sync.Mutex
	peers   []*mockPeer
	created []*mockPeer
}

func (f *mockFactory) NewPeer() (domain.Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var p *mockPeer
	if len(f.peers) > 0 {
		p, f.peers = f.peers[0], f.peers[1:]
	} else {
		p = &mockPeer{complete: true}
	}
	f.created = append(f.created, p)
	return p, nil
}

func (f *mockFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// mockDevices records the writer capture was opened with.
type mockDevices struct {
	mu     sync.Mutex
	fail   error
	out    domain.FrameWriter
	closed bool
}

func (d *mockDevices) Open(ctx context.Context, media domain.CallMedia, out domain.FrameWriter) (io.Closer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	d.out = out
	d.closed = false
	return d, nil
}

func (d *mockDevices) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// mockNotifier records unsolicited responses.
type mockNotifier struct {
	mu    sync.Mutex
	resps []protocol.Response
}

func (n *mockNotifier) Notify(resp protocol.Response) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resps = append(n.resps, resp)
}

func (n *mockNotifier) all() []protocol.Response {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]protocol.Response(nil), n.resps...)
}

type fixture struct {
	proc     *Processor
	factory  *mockFactory
	devices  *mockDevices
	notifier *mockNotifier
}

func newFixture(t *testing.T, encryption bool, peers ...*mockPeer) *fixture {
	t.Helper()
	f := &fixture{
		factory:  &mockFactory{peers: peers},
		devices:  &mockDevices{},
		notifier: &mockNotifier{},
	}
	cfg := Config{Encryption: encryption, ICEWait: 50 * time.Millisecond, ICEExtraWait: 100 * time.Millisecond}
	f.proc = New(cfg, f.factory, f.devices, &recordingWriter{}, zaptest.NewLogger(t))
	f.proc.SetNotifier(f.notifier)
	t.Cleanup(func() { f.proc.Process(context.Background(), protocol.EndCommand{}) })
	return f
}

func (f *fixture) do(cmd protocol.Command) protocol.Response {
	return f.proc.Process(context.Background(), cmd)
}

func requireError(t *testing.T, resp protocol.Response, message string) {
	t.Helper()
	require.IsType(t, protocol.ErrorResponse{}, resp)
	assert.Equal(t, message, resp.(protocol.ErrorResponse).Message)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, protocol.CapabilitiesResponse{Encryption: true}, newFixture(t, true).do(protocol.CapabilitiesCommand{}))
	assert.Equal(t, protocol.CapabilitiesResponse{Encryption: false}, newFixture(t, false).do(protocol.CapabilitiesCommand{}))
}

func TestStart_ReturnsOfferWithCandidates(t *testing.T) {
	peer := &mockPeer{candidates: []domain.ICECandidatePayload{candidate("c1"), candidate("c2")}, complete: true}
	f := newFixture(t, true, peer)

	resp := f.do(protocol.StartCommand{Media: domain.MediaVideo})
	require.IsType(t, protocol.OfferResponse{}, resp)
	offer := resp.(protocol.OfferResponse)

	sdp, err := domain.DecodeSDP(offer.Offer, "offer")
	require.NoError(t, err)
	assert.Equal(t, "v=0\r\nlocal-offer", sdp.SDP)
	require.Len(t, offer.ICECandidates, 2)
	c, err := domain.DecodeCandidate(offer.ICECandidates[1])
	require.NoError(t, err)
	assert.Equal(t, "c2", c.Candidate)

	assert.Equal(t, "video/VP8", peer.preferred)
	assert.Nil(t, peer.sendTransform, "unencrypted call has no send transform")
	assert.True(t, f.proc.Active())

	// Gathering completed in the first phase, so nothing follows.
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, f.notifier.all())
}

func TestStart_AudioCallDoesNotPreferVideoCodec(t *testing.T) {
	peer := &mockPeer{complete: true}
	f := newFixture(t, true, peer)
	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))
	assert.Empty(t, peer.preferred)
}

func TestOnlyOneCall(t *testing.T) {
	f := newFixture(t, true)

	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))
	requireError(t, f.do(protocol.StartCommand{Media: domain.MediaAudio}), "call already started")
	requireError(t, f.do(protocol.AcceptCommand{Offer: sdpText(t, "offer"), Media: domain.MediaAudio}), "call already started")
	assert.Equal(t, 1, f.factory.count(), "rejected commands must not create peers")

	assert.Equal(t, protocol.OkResponse{}, f.do(protocol.EndCommand{}))
	assert.True(t, f.factory.created[0].isClosed())
	requireError(t, f.do(protocol.EndCommand{}), "call not started")

	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))
}

func TestAnswer_Ordering(t *testing.T) {
	f := newFixture(t, true)

	requireError(t, f.do(protocol.AnswerCommand{Answer: sdpText(t, "answer")}), "call not started")

	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))
	assert.Equal(t, protocol.OkResponse{}, f.do(protocol.AnswerCommand{Answer: sdpText(t, "answer")}))
	requireError(t, f.do(protocol.AnswerCommand{Answer: sdpText(t, "answer")}), "remote description already set")
	assert.True(t, f.proc.Active(), "a rejected second answer keeps the call")
}

func TestAnswer_AfterAcceptIsRejected(t *testing.T) {
	f := newFixture(t, true)
	require.IsType(t, protocol.AnswerResponse{}, f.do(protocol.AcceptCommand{Offer: sdpText(t, "offer"), Media: domain.MediaAudio}))
	requireError(t, f.do(protocol.AnswerCommand{Answer: sdpText(t, "answer")}), "remote description already set")
}

func TestAnswer_FailureEndsCall(t *testing.T) {
	peer := &mockPeer{complete: true, failRemote: errors.New("set remote description: boom")}
	f := newFixture(t, true, peer)
	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))

	requireError(t, f.do(protocol.AnswerCommand{Answer: sdpText(t, "answer")}), "set remote description: boom")
	assert.False(t, f.proc.Active())
	assert.True(t, peer.isClosed())
}

func TestAnswer_MalformedEndsCall(t *testing.T) {
	peer := &mockPeer{complete: true}
	f := newFixture(t, true, peer)
	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))

	resp := f.do(protocol.AnswerCommand{Answer: sdpText(t, "offer")})
	require.IsType(t, protocol.ErrorResponse{}, resp)
	assert.False(t, f.proc.Active())
	assert.True(t, peer.isClosed())
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t, true)
	requireError(t, f.do(protocol.UnknownCommand{Type: "hangup"}), "unknown command")
}

func TestNotStarted(t *testing.T) {
	f := newFixture(t, true)
	requireError(t, f.do(protocol.ICECommand{ICECandidates: []string{candidateText(t, "c")}}), "call not started")
	requireError(t, f.do(protocol.MediaCommand{Media: domain.MediaAudio}), "call not started")
	requireError(t, f.do(protocol.EndCommand{}), "call not started")
}

func TestStart_FailureLeavesIdle(t *testing.T) {
	broken := &mockPeer{failLocal: errors.New("set local description: boom")}
	f := newFixture(t, true, broken)

	requireError(t, f.do(protocol.StartCommand{Media: domain.MediaAudio}), "set local description: boom")
	assert.False(t, f.proc.Active())
	assert.True(t, broken.isClosed())
	assert.True(t, f.devices.closed, "capture must be released")

	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))
}

func TestStart_CaptureDenied(t *testing.T) {
	peer := &mockPeer{complete: true}
	f := newFixture(t, true, peer)
	f.devices.fail = errors.New("permission denied")

	resp := f.do(protocol.StartCommand{Media: domain.MediaAudio})
	requireError(t, resp, "open media: permission denied")
	assert.False(t, f.proc.Active())
	assert.True(t, peer.isClosed())
}

func TestStart_EncryptionNotSupported(t *testing.T) {
	key, err := keycodec.Generate()
	require.NoError(t, err)
	f := newFixture(t, false)

	requireError(t, f.do(protocol.StartCommand{Media: domain.MediaAudio, AESKey: &key}), "encryption is not supported")
	requireError(t, f.do(protocol.AcceptCommand{Offer: sdpText(t, "offer"), Media: domain.MediaAudio, AESKey: &key}), "encryption is not supported")
	assert.Equal(t, 0, f.factory.count())

	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))
}

func TestStart_InvalidKey(t *testing.T) {
	bad := "not*base64"
	f := newFixture(t, true)

	resp := f.do(protocol.StartCommand{Media: domain.MediaAudio, AESKey: &bad})
	require.IsType(t, protocol.ErrorResponse{}, resp)
	assert.False(t, f.proc.Active())
	assert.Equal(t, 0, f.factory.count())
}

func TestStart_EncryptedTransforms(t *testing.T) {
	key, err := keycodec.Generate()
	require.NoError(t, err)
	peer := &mockPeer{complete: true}
	f := newFixture(t, true, peer)

	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaVideo, AESKey: &key}))
	require.NotNil(t, peer.sendTransform)
	require.NotNil(t, peer.recvTransform)

	frame := []byte{0x10, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	sealed, err := peer.sendTransform.TransformFrame(domain.FrameVideoKey, frame)
	require.NoError(t, err)
	opened, err := peer.recvTransform.TransformFrame(domain.FrameVideoKey, sealed)
	require.NoError(t, err)
	assert.Equal(t, frame, opened)

	require.Equal(t, protocol.OkResponse{}, f.do(protocol.EndCommand{}))
	_, err = peer.sendTransform.TransformFrame(domain.FrameVideoKey, frame)
	assert.ErrorIs(t, err, framecrypto.ErrClosed)
	_, err = peer.recvTransform.TransformFrame(domain.FrameVideoKey, sealed)
	assert.ErrorIs(t, err, framecrypto.ErrClosed)
}

func TestCandidatesQueuedUntilAnswer(t *testing.T) {
	peer := &mockPeer{complete: true}
	f := newFixture(t, true, peer)
	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))

	assert.Equal(t, protocol.OkResponse{}, f.do(protocol.ICECommand{ICECandidates: []string{candidateText(t, "early")}}))
	assert.Empty(t, peer.addedCandidates(), "no remote description yet")

	assert.Equal(t, protocol.OkResponse{}, f.do(protocol.AnswerCommand{
		Answer:        sdpText(t, "answer"),
		ICECandidates: []string{candidateText(t, "with-answer")},
	}))
	assert.Equal(t, []string{"early", "with-answer"}, peer.addedCandidates())

	assert.Equal(t, protocol.OkResponse{}, f.do(protocol.ICECommand{ICECandidates: []string{candidateText(t, "late"), "{broken"}}))
	assert.Equal(t, []string{"early", "with-answer", "late"}, peer.addedCandidates())
}

func TestAccept_AppliesOfferAndCandidates(t *testing.T) {
	peer := &mockPeer{candidates: []domain.ICECandidatePayload{candidate("mine")}, complete: true}
	f := newFixture(t, true, peer)

	resp := f.do(protocol.AcceptCommand{
		Offer:         sdpText(t, "offer"),
		ICECandidates: []string{candidateText(t, "theirs")},
		Media:         domain.MediaAudio,
	})
	require.IsType(t, protocol.AnswerResponse{}, resp)
	answer := resp.(protocol.AnswerResponse)

	sdp, err := domain.DecodeSDP(answer.Answer, "answer")
	require.NoError(t, err)
	assert.Equal(t, "v=0\r\nlocal-answer", sdp.SDP)
	assert.Len(t, answer.ICECandidates, 1)
	require.Len(t, peer.remote, 1)
	assert.Equal(t, "offer", peer.remote[0].Type)
	assert.Equal(t, []string{"theirs"}, peer.addedCandidates())
}

func TestAccept_AppliesCandidatesBeforeGathering(t *testing.T) {
	// Local gathering never completes, so Accept waits out the full first phase.
	peer := &mockPeer{}
	cfg := Config{Encryption: true, ICEWait: time.Second, ICEExtraWait: 50 * time.Millisecond}
	proc := New(cfg, &mockFactory{peers: []*mockPeer{peer}}, &mockDevices{}, &recordingWriter{}, zaptest.NewLogger(t))
	proc.SetNotifier(&mockNotifier{})
	t.Cleanup(func() { proc.Process(context.Background(), protocol.EndCommand{}) })

	cmd := protocol.AcceptCommand{
		Offer:         sdpText(t, "offer"),
		ICECandidates: []string{candidateText(t, "theirs")},
		Media:         domain.MediaAudio,
	}
	done := make(chan protocol.Response, 1)
	go func() { done <- proc.Process(context.Background(), cmd) }()

	require.Eventually(t, func() bool { return len(peer.addedCandidates()) == 1 }, 300*time.Millisecond, 5*time.Millisecond,
		"remote candidates must be applied while local gathering runs")
	select {
	case <-done:
		t.Fatal("accept returned before the gathering wait ended")
	default:
	}

	select {
	case resp := <-done:
		require.IsType(t, protocol.AnswerResponse{}, resp)
	case <-time.After(3 * time.Second):
		t.Fatal("accept did not return")
	}
}

func TestAccept_BadOfferLeavesIdle(t *testing.T) {
	f := newFixture(t, true)
	resp := f.do(protocol.AcceptCommand{Offer: "{", Media: domain.MediaAudio})
	require.IsType(t, protocol.ErrorResponse{}, resp)
	assert.False(t, f.proc.Active())
	assert.Equal(t, 0, f.factory.count())
}

func TestExtraCandidatesAreNotified(t *testing.T) {
	late := candidate("late")
	peer := &mockPeer{
		candidates: []domain.ICECandidatePayload{candidate("early")},
		late:       &late,
		lateAfter:  80 * time.Millisecond,
	}
	f := newFixture(t, true, peer)

	resp := f.do(protocol.StartCommand{Media: domain.MediaAudio})
	require.IsType(t, protocol.OfferResponse{}, resp)
	assert.Len(t, resp.(protocol.OfferResponse).ICECandidates, 1)

	require.Eventually(t, func() bool { return len(f.notifier.all()) == 1 }, time.Second, 10*time.Millisecond)
	ice, ok := f.notifier.all()[0].(protocol.ICEResponse)
	require.True(t, ok)
	require.Len(t, ice.ICECandidates, 1)
	c, err := domain.DecodeCandidate(ice.ICECandidates[0])
	require.NoError(t, err)
	assert.Equal(t, "late", c.Candidate)
}

func TestExtraCandidates_EmptyBatchIsNotSent(t *testing.T) {
	peer := &mockPeer{candidates: []domain.ICECandidatePayload{candidate("early")}}
	f := newFixture(t, true, peer)
	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))

	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, f.notifier.all())
}

func TestEnd_AbandonsExtraCandidates(t *testing.T) {
	late := candidate("late")
	peer := &mockPeer{late: &late, lateAfter: 80 * time.Millisecond}
	f := newFixture(t, true, peer)
	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))
	require.Equal(t, protocol.OkResponse{}, f.do(protocol.EndCommand{}))

	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, f.notifier.all())
}

func TestConnectionFailureEndsCall(t *testing.T) {
	peer := &mockPeer{complete: true}
	f := newFixture(t, true, peer)
	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))

	peer.emitState("connected", false)
	peer.emitState("failed", true)

	require.Eventually(t, func() bool { return !f.proc.Active() }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.notifier.all()) == 3 }, time.Second, 10*time.Millisecond)
	resps := f.notifier.all()
	assert.Equal(t, protocol.ConnectionResponse{State: domain.ConnectionInfo{ConnectionState: "connected"}}, resps[0])
	assert.Equal(t, protocol.ConnectionResponse{State: domain.ConnectionInfo{ConnectionState: "failed"}}, resps[1])
	assert.Equal(t, protocol.EndedResponse{}, resps[2])
	assert.True(t, peer.isClosed())

	requireError(t, f.do(protocol.EndCommand{}), "call not started")
}

func TestMediaToggle(t *testing.T) {
	peer := &mockPeer{complete: true}
	f := newFixture(t, true, peer)
	require.IsType(t, protocol.OfferResponse{}, f.do(protocol.StartCommand{Media: domain.MediaAudio}))

	requireError(t, f.do(protocol.MediaCommand{Media: domain.MediaVideo, Enable: false}), "media is not in this call")

	audio := domain.Frame{Kind: domain.FrameAudio, Data: []byte{1, 2}}
	require.NoError(t, f.devices.out.WriteFrame(audio))
	assert.Equal(t, 1, peer.localTracks.count())

	assert.Equal(t, protocol.OkResponse{}, f.do(protocol.MediaCommand{Media: domain.MediaAudio, Enable: false}))
	require.NoError(t, f.devices.out.WriteFrame(audio))
	assert.Equal(t, 1, peer.localTracks.count(), "muted frames are dropped")

	assert.Equal(t, protocol.OkResponse{}, f.do(protocol.MediaCommand{Media: domain.MediaAudio, Enable: true}))
	require.NoError(t, f.devices.out.WriteFrame(audio))
	assert.Equal(t, 2, peer.localTracks.count())
}

func TestProcess_CancelledContextAbortsSetup(t *testing.T) {
	peer := &mockPeer{}
	f := newFixture(t, true, peer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := f.proc.Process(ctx, protocol.StartCommand{Media: domain.MediaAudio})
	requireError(t, resp, "call setup cancelled")
	assert.False(t, f.proc.Active())
	assert.True(t, peer.isClosed())
}

func TestNew_DefaultWaits(t *testing.T) {
	p := New(Config{}, &mockFactory{}, &mockDevices{}, &recordingWriter{}, zap.NewNop())
	assert.Equal(t, 4*time.Second, p.cfg.ICEWait)
	assert.Equal(t, 4*time.Second, p.cfg.ICEExtraWait)
}
