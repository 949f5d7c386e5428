package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is a command as sent by the host, optionally correlated.
type Request struct {
	CorrID  *int64          `json:"corrId,omitempty"`
	Command json.RawMessage `json:"command"`
}

// Reply carries a response back to the host. Unsolicited events have no
// CorrID and no Command.
type Reply struct {
	CorrID  *int64          `json:"corrId,omitempty"`
	Resp    json.RawMessage `json:"resp"`
	Command json.RawMessage `json:"command,omitempty"`
}

// ParseRequest accepts either an envelope {"corrId":n,"command":{...}} or a
// bare command object.
func ParseRequest(data []byte) (Request, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := probe["command"]; !ok {
		return Request{Command: json.RawMessage(bytes.Clone(data))}, nil
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return req, nil
}

// EncodeReply encodes resp in an envelope. command may be nil.
func EncodeReply(corrID *int64, resp Response, command json.RawMessage) ([]byte, error) {
	body, err := MarshalResponse(resp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Reply{CorrID: corrID, Resp: body, Command: command})
}
