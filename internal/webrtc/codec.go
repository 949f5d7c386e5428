package webrtc

import (
	"strings"

	pion "github.com/pion/webrtc/v4"
)

// PreferredVideoCodec is offered first on every video transceiver. Its
// frame layout is what the cleartext prefix policy is written for.
const PreferredVideoCodec = pion.MimeTypeVP8

var (
	opusCodec = pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}

	vp8Codec = pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:  pion.MimeTypeVP8,
			ClockRate: 90000,
			RTCPFeedback: []pion.RTCPFeedback{
				{Type: "nack"},
				{Type: "nack", Parameter: "pli"},
				{Type: "ccm", Parameter: "fir"},
			},
		},
		PayloadType: 96,
	}
)

// preferCodec moves the codecs matching mimeType to the front, keeping the
// relative order of both groups.
func preferCodec(codecs []pion.RTPCodecParameters, mimeType string) []pion.RTPCodecParameters {
	out := make([]pion.RTPCodecParameters, 0, len(codecs))
	for _, c := range codecs {
		if strings.EqualFold(c.MimeType, mimeType) {
			out = append(out, c)
		}
	}
	for _, c := range codecs {
		if !strings.EqualFold(c.MimeType, mimeType) {
			out = append(out, c)
		}
	}
	return out
}
