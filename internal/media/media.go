// Package media provides capture and playback endpoints for hosts that do
// not bring their own: a silent Opus capture and a counting playback sink.
package media

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"webcall/native/internal/domain"
)

// FrameDuration is the duration of one Opus frame produced by
// SilenceDevices.
const FrameDuration = 20 * time.Millisecond

// opusSilence is a 20ms Opus frame of digital silence (CELT, TOC 0xf8).
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// ErrCaptureDenied is returned by DeniedDevices.
var ErrCaptureDenied = errors.New("media: capture denied")

// SilenceDevices captures silent Opus audio. Video is not captured; the
// video track of a video call stays idle.
type SilenceDevices struct {
	Logger *zap.Logger
}

var _ domain.MediaDevices = SilenceDevices{}

// Open starts writing a silence frame every FrameDuration until the
// returned closer is closed or ctx is done.
func (d SilenceDevices) Open(ctx context.Context, media domain.CallMedia, out domain.FrameWriter) (io.Closer, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("media")

	c := &capture{done: make(chan struct{})}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(FrameDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-ticker.C:
				frame := domain.Frame{Kind: domain.FrameAudio, Data: opusSilence, Duration: FrameDuration}
				if err := out.WriteFrame(frame); err != nil {
					logger.Debug("capture write failed", zap.Error(err))
				}
			}
		}
	}()
	logger.Info("capture opened", zap.String("media", string(media)))
	return c, nil
}

type capture struct {
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (c *capture) Close() error {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
	return nil
}

// DeniedDevices refuses every capture request, like a user declining
// microphone access.
type DeniedDevices struct{}

func (DeniedDevices) Open(context.Context, domain.CallMedia, domain.FrameWriter) (io.Closer, error) {
	return nil, ErrCaptureDenied
}

// CountingSink is a playback sink that counts frames per kind.
type CountingSink struct {
	audio atomic.Int64
	video atomic.Int64
	bytes atomic.Int64
}

var _ domain.FrameWriter = (*CountingSink)(nil)

// WriteFrame implements domain.FrameWriter.
func (s *CountingSink) WriteFrame(f domain.Frame) error {
	switch f.Kind {
	case domain.FrameAudio:
		s.audio.Add(1)
	case domain.FrameVideoKey, domain.FrameVideoDelta:
		s.video.Add(1)
	}
	s.bytes.Add(int64(len(f.Data)))
	return nil
}

// Counts returns the number of audio and video frames and total bytes
// received so far.
func (s *CountingSink) Counts() (audio, video, bytes int64) {
	return s.audio.Load(), s.video.Load(), s.bytes.Load()
}

// Report logs the counters every interval until ctx is done.
func (s *CountingSink) Report(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			audio, video, bytes := s.Counts()
			logger.Info("playback",
				zap.Int64("audioFrames", audio),
				zap.Int64("videoFrames", video),
				zap.Int64("bytes", bytes))
		}
	}
}
