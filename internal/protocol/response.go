package protocol

import "webcall/native/internal/domain"

// Response is sent to the host, either as the reply to a command or
// unsolicited (ICE, Connection, Ended).
type Response interface {
	ResponseType() string
	isResponse()
}

// CapabilitiesResponse reports whether frame encryption is available.
type CapabilitiesResponse struct {
	Encryption bool
}

// OfferResponse is the reply to StartCommand.
type OfferResponse struct {
	Offer         string
	ICECandidates []string
}

// AnswerResponse is the reply to AcceptCommand.
type AnswerResponse struct {
	Answer        string
	ICECandidates []string
}

// ICEResponse pushes local candidates found after the offer or answer was sent.
type ICEResponse struct {
	ICECandidates []string
}

// ConnectionResponse reports a peer connection state change.
type ConnectionResponse struct {
	State domain.ConnectionInfo
}

// EndedResponse reports that the call ended without an EndCommand.
type EndedResponse struct{}

// OkResponse acknowledges a command that has no other result.
type OkResponse struct{}

// ErrorResponse rejects a command.
type ErrorResponse struct {
	Message string
}

// InvalidResponse reports input that could not be parsed as a command.
type InvalidResponse struct {
	Type string
}

func (CapabilitiesResponse) ResponseType() string { return "capabilities" }
func (OfferResponse) ResponseType() string        { return "offer" }
func (AnswerResponse) ResponseType() string       { return "answer" }
func (ICEResponse) ResponseType() string          { return "ice" }
func (ConnectionResponse) ResponseType() string   { return "connection" }
func (EndedResponse) ResponseType() string        { return "ended" }
func (OkResponse) ResponseType() string           { return "ok" }
func (ErrorResponse) ResponseType() string        { return "error" }
func (InvalidResponse) ResponseType() string      { return "invalid" }

func (CapabilitiesResponse) isResponse() {}
func (OfferResponse) isResponse()        {}
func (AnswerResponse) isResponse()       {}
func (ICEResponse) isResponse()          {}
func (ConnectionResponse) isResponse()   {}
func (EndedResponse) isResponse()        {}
func (OkResponse) isResponse()           {}
func (ErrorResponse) isResponse()        {}
func (InvalidResponse) isResponse()      {}

// Error builds an ErrorResponse.
func Error(message string) ErrorResponse {
	return ErrorResponse{Message: message}
}
