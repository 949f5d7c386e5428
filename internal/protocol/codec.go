package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"webcall/native/internal/domain"
)

// ErrMalformed is returned for input that is not a JSON command object or
// lacks a required field.
var ErrMalformed = errors.New("protocol: malformed command")

// wireCommand is the generic JSON command object, tagged by type.
type wireCommand struct {
	Type          string    `json:"type"`
	Media         *string   `json:"media,omitempty"`
	AESKey        *string   `json:"aesKey,omitempty"`
	Offer         *string   `json:"offer,omitempty"`
	Answer        *string   `json:"answer,omitempty"`
	ICECandidates *[]string `json:"iceCandidates,omitempty"`
	Enable        *bool     `json:"enable,omitempty"`
}

// wireResponse is the generic JSON response object, tagged by type.
type wireResponse struct {
	Type          string                 `json:"type"`
	Capabilities  *wireCapabilities      `json:"capabilities,omitempty"`
	Offer         *string                `json:"offer,omitempty"`
	Answer        *string                `json:"answer,omitempty"`
	ICECandidates *[]string              `json:"iceCandidates,omitempty"`
	State         *domain.ConnectionInfo `json:"state,omitempty"`
	Message       *string                `json:"message,omitempty"`
	InvalidType   *string                `json:"invalidType,omitempty"`
}

type wireCapabilities struct {
	Encryption bool `json:"encryption"`
}

func missing(typ, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrMalformed, typ, field)
}

func parseMedia(typ string, m *string) (domain.CallMedia, error) {
	if m == nil {
		return "", missing(typ, "media")
	}
	media, err := domain.ParseCallMedia(*m)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return media, nil
}

// ParseCommand decodes one JSON command. Well-formed commands with an
// unrecognized type yield UnknownCommand, not an error.
func ParseCommand(data []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch w.Type {
	case "":
		return nil, missing("command", "type")
	case "capabilities":
		return CapabilitiesCommand{}, nil
	case "start":
		media, err := parseMedia(w.Type, w.Media)
		if err != nil {
			return nil, err
		}
		return StartCommand{Media: media, AESKey: w.AESKey}, nil
	case "accept":
		media, err := parseMedia(w.Type, w.Media)
		if err != nil {
			return nil, err
		}
		if w.Offer == nil {
			return nil, missing(w.Type, "offer")
		}
		if w.ICECandidates == nil {
			return nil, missing(w.Type, "iceCandidates")
		}
		return AcceptCommand{Offer: *w.Offer, ICECandidates: *w.ICECandidates, Media: media, AESKey: w.AESKey}, nil
	case "answer":
		if w.Answer == nil {
			return nil, missing(w.Type, "answer")
		}
		if w.ICECandidates == nil {
			return nil, missing(w.Type, "iceCandidates")
		}
		return AnswerCommand{Answer: *w.Answer, ICECandidates: *w.ICECandidates}, nil
	case "ice":
		if w.ICECandidates == nil {
			return nil, missing(w.Type, "iceCandidates")
		}
		return ICECommand{ICECandidates: *w.ICECandidates}, nil
	case "end":
		return EndCommand{}, nil
	case "media":
		media, err := parseMedia(w.Type, w.Media)
		if err != nil {
			return nil, err
		}
		if w.Enable == nil {
			return nil, missing(w.Type, "enable")
		}
		return MediaCommand{Media: media, Enable: *w.Enable}, nil
	default:
		return UnknownCommand{Type: w.Type}, nil
	}
}

func candidates(c []string) *[]string {
	if c == nil {
		c = []string{}
	}
	return &c
}

func str(s string) *string { return &s }

// MarshalCommand encodes a command. Hosts written in Go and tests use it;
// the engine itself only parses commands.
func MarshalCommand(cmd Command) ([]byte, error) {
	w := wireCommand{Type: cmd.CommandType()}
	switch c := cmd.(type) {
	case CapabilitiesCommand, EndCommand, UnknownCommand:
	case StartCommand:
		w.Media = str(string(c.Media))
		w.AESKey = c.AESKey
	case AcceptCommand:
		w.Offer = str(c.Offer)
		w.ICECandidates = candidates(c.ICECandidates)
		w.Media = str(string(c.Media))
		w.AESKey = c.AESKey
	case AnswerCommand:
		w.Answer = str(c.Answer)
		w.ICECandidates = candidates(c.ICECandidates)
	case ICECommand:
		w.ICECandidates = candidates(c.ICECandidates)
	case MediaCommand:
		w.Media = str(string(c.Media))
		w.Enable = &c.Enable
	default:
		return nil, fmt.Errorf("protocol: unsupported command %T", cmd)
	}
	return json.Marshal(w)
}

// MarshalResponse encodes a response.
func MarshalResponse(resp Response) ([]byte, error) {
	w := wireResponse{Type: resp.ResponseType()}
	switch r := resp.(type) {
	case CapabilitiesResponse:
		w.Capabilities = &wireCapabilities{Encryption: r.Encryption}
	case OfferResponse:
		w.Offer = str(r.Offer)
		w.ICECandidates = candidates(r.ICECandidates)
	case AnswerResponse:
		w.Answer = str(r.Answer)
		w.ICECandidates = candidates(r.ICECandidates)
	case ICEResponse:
		w.ICECandidates = candidates(r.ICECandidates)
	case ConnectionResponse:
		w.State = &r.State
	case EndedResponse, OkResponse:
	case ErrorResponse:
		w.Message = str(r.Message)
	case InvalidResponse:
		w.InvalidType = str(r.Type)
	default:
		return nil, fmt.Errorf("protocol: unsupported response %T", resp)
	}
	return json.Marshal(w)
}

// ParseResponse decodes one JSON response.
func ParseResponse(data []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("protocol: parse response: %w", err)
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	list := func() []string {
		if w.ICECandidates == nil {
			return nil
		}
		return *w.ICECandidates
	}

	switch w.Type {
	case "capabilities":
		if w.Capabilities == nil {
			return nil, fmt.Errorf("protocol: capabilities response without capabilities")
		}
		return CapabilitiesResponse{Encryption: w.Capabilities.Encryption}, nil
	case "offer":
		return OfferResponse{Offer: deref(w.Offer), ICECandidates: list()}, nil
	case "answer":
		return AnswerResponse{Answer: deref(w.Answer), ICECandidates: list()}, nil
	case "ice":
		return ICEResponse{ICECandidates: list()}, nil
	case "connection":
		if w.State == nil {
			return nil, fmt.Errorf("protocol: connection response without state")
		}
		return ConnectionResponse{State: *w.State}, nil
	case "ended":
		return EndedResponse{}, nil
	case "ok":
		return OkResponse{}, nil
	case "error":
		return ErrorResponse{Message: deref(w.Message)}, nil
	case "invalid":
		return InvalidResponse{Type: deref(w.InvalidType)}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown response type %q", w.Type)
	}
}
