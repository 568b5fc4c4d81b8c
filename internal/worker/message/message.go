// Package message is the page↔worker message codec. Messages are a closed
// set of types, each carrying a "type" discriminator on the wire.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypePushMock       = "push-mock"
	TypePushMockResult = "push-mock-result"
)

var ErrUnknownType = errors.New("unknown message type")

// Message is implemented by every message kind.
type Message interface {
	Type() string
}

// PushMock asks the worker to show a local test notification.
type PushMock struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

func (PushMock) Type() string { return TypePushMock }

// PushMockResult reports back why a PushMock could not be shown.
type PushMockResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (PushMockResult) Type() string { return TypePushMockResult }

type pushMockWire struct {
	Type string   `json:"type"`
	Data PushMock `json:"data"`
}

type pushMockResultWire struct {
	Type string `json:"type"`
	PushMockResult
}

// Encode renders m in its wire form.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case PushMock:
		return json.Marshal(pushMockWire{Type: TypePushMock, Data: v})
	case *PushMock:
		return json.Marshal(pushMockWire{Type: TypePushMock, Data: *v})
	case PushMockResult:
		return json.Marshal(pushMockResultWire{Type: TypePushMockResult, PushMockResult: v})
	case *PushMockResult:
		return json.Marshal(pushMockResultWire{Type: TypePushMockResult, PushMockResult: *v})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}
}

// Decode parses a wire message.
func Decode(b []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch head.Type {
	case TypePushMock:
		var w pushMockWire
		if err := json.Unmarshal(b, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return w.Data, nil
	case TypePushMockResult:
		var w pushMockResultWire
		if err := json.Unmarshal(b, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return w.PushMockResult, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}
