package webrtc

import (
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

// maxLate is how many packets the assembler holds back waiting for a
// missing one before it gives up on the frame.
const maxLate = 64

// FrameAssembler rebuilds encoded frames from the RTP packets of one
// remote track. Each instance keeps its own reordering buffer.
type FrameAssembler struct {
	sb *samplebuilder.SampleBuilder
}

// NewFrameAssembler creates an assembler for a codec's depacketizer.
func NewFrameAssembler(depacketizer rtp.Depacketizer, clockRate uint32) *FrameAssembler {
	return &FrameAssembler{sb: samplebuilder.New(maxLate, depacketizer, clockRate)}
}

// Push adds a packet and returns every frame completed by it, in order.
func (a *FrameAssembler) Push(pkt *rtp.Packet) []*media.Sample {
	if pkt == nil || len(pkt.Payload) == 0 {
		return nil
	}
	a.sb.Push(pkt)

	var out []*media.Sample
	for {
		s := a.sb.Pop()
		if s == nil {
			return out
		}
		out = append(out, s)
	}
}
