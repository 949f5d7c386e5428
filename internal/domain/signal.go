package domain

import (
	"encoding/json"
	"fmt"
)

// SDPPayload is the JSON structure for SDP offer/answer messages.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidatePayload is the JSON structure for ICE candidate messages.
type ICECandidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// EncodeSDP serializes a session description into the string carried by
// the offer and answer fields of the call protocol.
func EncodeSDP(sdp SDPPayload) (string, error) {
	data, err := json.Marshal(sdp)
	if err != nil {
		return "", fmt.Errorf("marshal session description: %w", err)
	}
	return string(data), nil
}

// DecodeSDP parses a serialized session description and checks its type.
func DecodeSDP(text, wantType string) (SDPPayload, error) {
	var sdp SDPPayload
	if err := json.Unmarshal([]byte(text), &sdp); err != nil {
		return SDPPayload{}, fmt.Errorf("parse %s: %w", wantType, err)
	}
	if sdp.Type != wantType {
		return SDPPayload{}, fmt.Errorf("parse %s: unexpected description type %q", wantType, sdp.Type)
	}
	if sdp.SDP == "" {
		return SDPPayload{}, fmt.Errorf("parse %s: empty sdp", wantType)
	}
	return sdp, nil
}

// EncodeCandidates serializes candidates in order, one string per candidate.
func EncodeCandidates(candidates []ICECandidatePayload) ([]string, error) {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal ice candidate: %w", err)
		}
		out = append(out, string(data))
	}
	return out, nil
}

// DecodeCandidate parses one serialized ICE candidate.
func DecodeCandidate(text string) (ICECandidatePayload, error) {
	var c ICECandidatePayload
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return ICECandidatePayload{}, fmt.Errorf("parse ice candidate: %w", err)
	}
	return c, nil
}
