package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Type tags the payload variant carried by a Message.
type Type string

const (
	TypeFunctionCall     Type = "function_call"
	TypeFunctionResponse Type = "function_response"
	TypeError            Type = "error"
)

// ServerID is the correlation id of the capability announcement, which
// is not a reply to any caller request.
const ServerID = "server"

// Message is one line on the wire: a correlation id plus exactly one
// payload variant, flattened as {"id", "type", "content"}.
type Message struct {
	ID      string
	Content Content
}

// Content is the closed set of payload variants. Only FunctionCall,
// FunctionResponse and Error implement it.
type Content interface {
	Type() Type
	isContent()
}

// FunctionCall asks the server to run a named operation.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// FunctionResponse carries the result of a successful call.
type FunctionResponse struct {
	Result any `json:"result"`
}

// Error carries a human-readable failure.
type Error struct {
	Message string `json:"message"`
}

func (FunctionCall) Type() Type     { return TypeFunctionCall }
func (FunctionResponse) Type() Type { return TypeFunctionResponse }
func (Error) Type() Type            { return TypeError }

func (FunctionCall) isContent()     {}
func (FunctionResponse) isContent() {}
func (Error) isContent()            {}

// StringArg returns the named argument if the call's arguments are an
// object and the value is a string.
func (c FunctionCall) StringArg(key string) (string, bool) {
	obj, ok := c.Arguments.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := obj[key].(string)
	return s, ok
}

// NewResponse builds a FunctionResponse message.
func NewResponse(id string, result any) Message {
	return Message{ID: id, Content: FunctionResponse{Result: result}}
}

// NewError builds an Error message.
func NewError(id, message string) Message {
	return Message{ID: id, Content: Error{Message: message}}
}

// ParseMessage decodes one wire line into a Message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	return &msg, nil
}

// UnmarshalJSON decodes the flattened envelope. Keys are matched exactly,
// the input must be valid UTF-8, the id must be a string and the content
// must carry the fields its variant requires.
func (m *Message) UnmarshalJSON(data []byte) error {
	if !utf8.Valid(data) {
		return errors.New("invalid UTF-8 in message")
	}
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}

	var id string
	if err := decodeField(fields, "id", &id); err != nil {
		return err
	}
	var typ Type
	if err := decodeField(fields, "type", &typ); err != nil {
		return err
	}
	raw, ok := fields["content"]
	if !ok || isNull(raw) {
		return errors.New("missing field: content")
	}

	var content Content
	switch typ {
	case TypeFunctionCall:
		c, err := decodeObject(raw)
		if err != nil {
			return fmt.Errorf("function_call content: %w", err)
		}
		var call FunctionCall
		if err := decodeField(c, "name", &call.Name); err != nil {
			return fmt.Errorf("function_call content: %w", err)
		}
		if args, ok := c["arguments"]; ok {
			if err := json.Unmarshal(args, &call.Arguments); err != nil {
				return fmt.Errorf("function_call content: arguments: %w", err)
			}
		}
		content = call
	case TypeFunctionResponse:
		c, err := decodeObject(raw)
		if err != nil {
			return fmt.Errorf("function_response content: %w", err)
		}
		result, ok := c["result"]
		if !ok {
			return errors.New("function_response content: missing field: result")
		}
		var resp FunctionResponse
		if err := json.Unmarshal(result, &resp.Result); err != nil {
			return fmt.Errorf("function_response content: result: %w", err)
		}
		content = resp
	case TypeError:
		c, err := decodeObject(raw)
		if err != nil {
			return fmt.Errorf("error content: %w", err)
		}
		var e Error
		if err := decodeField(c, "message", &e.Message); err != nil {
			return fmt.Errorf("error content: %w", err)
		}
		content = e
	default:
		return fmt.Errorf("unknown message type %q", typ)
	}

	m.ID = id
	m.Content = content
	return nil
}

// decodeObject splits a JSON object into its members, keyed exactly as
// written on the wire.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("expected a JSON object")
	}
	return fields, nil
}

// decodeField decodes a required, non-null member into v.
func decodeField(fields map[string]json.RawMessage, key string, v any) error {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return fmt.Errorf("missing field: %s", key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// MarshalJSON encodes the flattened envelope.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Content == nil {
		return nil, errors.New("message has no content")
	}
	return json.Marshal(struct {
		ID      string  `json:"id"`
		Type    Type    `json:"type"`
		Content Content `json:"content"`
	}{m.ID, m.Content.Type(), m.Content})
}

// Encode serializes a message as one newline-terminated line.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding message %q: %w", m.ID, err)
	}
	return append(data, '\n'), nil
}
