// Package protocol defines the call command/response vocabulary exchanged
// with the host and its JSON encoding.
//
// Commands and responses are closed sets: each variant implements an
// unexported marker method, so only this package can add new ones.
package protocol

import "webcall/native/internal/domain"

// Command is a host request. Variants: CapabilitiesCommand, StartCommand,
// AcceptCommand, AnswerCommand, ICECommand, EndCommand, MediaCommand and
// UnknownCommand.
type Command interface {
	CommandType() string
	isCommand()
}

// CapabilitiesCommand asks which optional features the engine supports.
type CapabilitiesCommand struct{}

// StartCommand places an outgoing call and yields the local offer.
type StartCommand struct {
	Media  domain.CallMedia
	AESKey *string
}

// AcceptCommand answers an incoming offer.
type AcceptCommand struct {
	Offer         string
	ICECandidates []string
	Media         domain.CallMedia
	AESKey        *string
}

// AnswerCommand applies the remote answer to an outgoing call.
type AnswerCommand struct {
	Answer        string
	ICECandidates []string
}

// ICECommand carries remote ICE candidates that arrived after the offer or answer.
type ICECommand struct {
	ICECandidates []string
}

// EndCommand ends the active call.
type EndCommand struct{}

// MediaCommand enables or disables sending of one local media type.
type MediaCommand struct {
	Media  domain.CallMedia
	Enable bool
}

// UnknownCommand is a well-formed command whose type tag is not recognized.
type UnknownCommand struct {
	Type string
}

func (CapabilitiesCommand) CommandType() string { return "capabilities" }
func (StartCommand) CommandType() string        { return "start" }
func (AcceptCommand) CommandType() string       { return "accept" }
func (AnswerCommand) CommandType() string       { return "answer" }
func (ICECommand) CommandType() string          { return "ice" }
func (EndCommand) CommandType() string          { return "end" }
func (MediaCommand) CommandType() string        { return "media" }
func (c UnknownCommand) CommandType() string    { return c.Type }

func (CapabilitiesCommand) isCommand() {}
func (StartCommand) isCommand()        {}
func (AcceptCommand) isCommand()       {}
func (AnswerCommand) isCommand()       {}
func (ICECommand) isCommand()          {}
func (EndCommand) isCommand()          {}
func (MediaCommand) isCommand()        {}
func (UnknownCommand) isCommand()      {}
