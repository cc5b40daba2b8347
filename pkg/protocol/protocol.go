// Package protocol defines the hub wire envelope and the message bodies the
// client understands.
//
// Every frame on the wire is a two-element JSON array, [kind, content], where
// kind is one of "request", "justsaying" or "response". Decode turns a frame
// into one of the typed variants *Request, *Justsaying or *Response.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the variant carried by an envelope.
type Kind string

const (
	KindRequest    Kind = "request"
	KindJustsaying Kind = "justsaying"
	KindResponse   Kind = "response"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownKind       = errors.New("unknown envelope kind")
)

// Envelope is implemented by *Request, *Justsaying and *Response.
type Envelope interface {
	Kind() Kind
}

// Request asks the peer to run a command. A request carrying a tag expects a
// Response with the same tag.
type Request struct {
	Command string          `json:"command"`
	Tag     string          `json:"tag,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Justsaying is a one-way notification; it is never acknowledged.
type Justsaying struct {
	Subject string          `json:"subject"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Response answers the Request with the same tag.
type Response struct {
	Tag      string          `json:"tag"`
	Response json.RawMessage `json:"response,omitempty"`
}

func (*Request) Kind() Kind    { return KindRequest }
func (*Justsaying) Kind() Kind { return KindJustsaying }
func (*Response) Kind() Kind   { return KindResponse }

// NewRequest builds a request, encoding params as JSON. A nil params value
// leaves the field out.
func NewRequest(command string, params any) (*Request, error) {
	req := &Request{Command: command}
	if params == nil {
		return req, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", command, err)
	}
	req.Params = raw
	return req, nil
}

// NewJustsaying builds a justsaying with a JSON encoded body.
func NewJustsaying(subject string, body any) (*Justsaying, error) {
	js := &Justsaying{Subject: subject}
	if body == nil {
		return js, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", subject, err)
	}
	js.Body = raw
	return js, nil
}

// NewResponse builds a response with a JSON encoded body.
func NewResponse(tag string, body any) (*Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode response %s: %w", tag, err)
	}
	return &Response{Tag: tag, Response: raw}, nil
}

// ErrorText reports the error string of a {"error": ...} response body.
func (r *Response) ErrorText() (string, bool) {
	if len(r.Response) == 0 || r.Response[0] != '{' {
		return "", false
	}
	var body ErrorBody
	if err := json.Unmarshal(r.Response, &body); err != nil || body.Error == "" {
		return "", false
	}
	return body.Error, true
}

// Frame wraps an envelope so that it marshals to its wire form.
type Frame struct {
	Envelope Envelope
}

func (f Frame) MarshalJSON() ([]byte, error) {
	if f.Envelope == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrMalformedEnvelope)
	}
	return json.Marshal([2]any{f.Envelope.Kind(), f.Envelope})
}

// Encode returns the wire form of env.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(Frame{Envelope: env})
}

// DecodeError describes a frame that could not be turned into an envelope.
// It matches ErrMalformedEnvelope or ErrUnknownKind with errors.Is.
type DecodeError struct {
	Kind  Kind
	Err   error
	Cause error
}

func (e *DecodeError) Error() string {
	msg := e.Err.Error()
	if e.Kind != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Kind)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Decode parses one wire frame.
func Decode(data []byte) (Envelope, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, &DecodeError{Err: ErrMalformedEnvelope, Cause: err}
	}
	if len(parts) != 2 {
		return nil, &DecodeError{
			Err:   ErrMalformedEnvelope,
			Cause: fmt.Errorf("want 2 elements, got %d", len(parts)),
		}
	}

	var kind Kind
	if err := json.Unmarshal(parts[0], &kind); err != nil {
		return nil, &DecodeError{Err: ErrMalformedEnvelope, Cause: err}
	}

	var env Envelope
	switch kind {
	case KindRequest:
		env = &Request{}
	case KindJustsaying:
		env = &Justsaying{}
	case KindResponse:
		env = &Response{}
	default:
		return nil, &DecodeError{Kind: kind, Err: ErrUnknownKind}
	}

	content := bytes.TrimSpace(parts[1])
	if len(content) == 0 || content[0] != '{' {
		return nil, &DecodeError{
			Kind:  kind,
			Err:   ErrMalformedEnvelope,
			Cause: errors.New("content is not an object"),
		}
	}
	if err := json.Unmarshal(content, env); err != nil {
		return nil, &DecodeError{Kind: kind, Err: ErrMalformedEnvelope, Cause: err}
	}
	return env, nil
}
