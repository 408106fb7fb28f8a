// Package wire implements the framing and message encoding shared by the
// bridge client and the host: each frame is a 4-byte big-endian payload
// length followed by a UTF-8 JSON document, either a Command or a Response.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// headerLength is the fixed size of the length prefix.
	headerLength = 4

	// MaxPayloadLength caps a single frame's payload. Results carrying
	// base64 image data fit well under this.
	MaxPayloadLength = 16 * 1024 * 1024
)

var (
	// ErrNeedMoreData reports that the buffer does not yet hold a complete
	// frame. It is a resumable condition, not a protocol violation.
	ErrNeedMoreData = errors.New("wire: need more data")

	// ErrFrameTooLarge reports a length header above MaxPayloadLength.
	// The stream cannot be resynchronized after this.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum payload length")

	// ErrEmptyFrame reports a zero-length frame, which cannot carry a
	// JSON document.
	ErrEmptyFrame = errors.New("wire: empty frame")
)

// Command is one named request sent to the host.
type Command struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorKind is the closed set of failure categories carried on the wire.
type ErrorKind string

const (
	KindConnection ErrorKind = "connection_error"
	KindCommand    ErrorKind = "command_error"
	KindResponse   ErrorKind = "response_error"
	KindTimeout    ErrorKind = "timeout_error"
)

// Response is the single outcome produced for a Command.
type Response struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Kind    ErrorKind       `json:"kind,omitempty"`
	Message string          `json:"message,omitempty"`
}

// IsError reports whether the response carries a failure.
func (r *Response) IsError() bool {
	return r.Status == StatusError
}

// Success builds a success response, marshaling result into the payload.
func Success(result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &Response{Status: StatusSuccess, Result: raw}, nil
}

// Failure builds an error response of the given kind.
func Failure(kind ErrorKind, message string) *Response {
	return &Response{Status: StatusError, Kind: kind, Message: message}
}

// EncodeFrame wraps payload in a length-prefixed frame.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyFrame
	}
	if len(payload) > MaxPayloadLength {
		return nil, ErrFrameTooLarge
	}
	frame := make([]byte, headerLength+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerLength:], payload)
	return frame, nil
}

// Decode splits one complete frame off the front of buf. It is a pure
// function of the buffer: rest aliases the unconsumed tail, so callers can
// feed partial reads incrementally. An incomplete frame yields
// ErrNeedMoreData with buf returned unchanged as rest. A malformed length
// header yields ErrFrameTooLarge or ErrEmptyFrame; the stream is
// unrecoverable in that case.
func Decode(buf []byte) (payload, rest []byte, err error) {
	if len(buf) < headerLength {
		return nil, buf, ErrNeedMoreData
	}
	length := binary.BigEndian.Uint32(buf)
	if length == 0 {
		return nil, buf, ErrEmptyFrame
	}
	if length > MaxPayloadLength {
		return nil, buf, ErrFrameTooLarge
	}
	total := headerLength + int(length)
	if len(buf) < total {
		return nil, buf, ErrNeedMoreData
	}
	return buf[headerLength:total], buf[total:], nil
}

// Decoder accumulates raw socket reads and yields complete frame payloads.
type Decoder struct {
	buf []byte
}

// Feed appends raw bytes to the decode buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete payload, or ErrNeedMoreData when the
// buffer holds only a partial frame. Payloads are copied out, so they stay
// valid across further Feed calls.
func (d *Decoder) Next() ([]byte, error) {
	payload, rest, err := Decode(d.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	d.buf = append(d.buf[:0], rest...)
	return out, nil
}

// Buffered returns the number of undecoded bytes held by the decoder.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// EncodeCommand marshals and frames a command.
func EncodeCommand(cmd *Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshaling command: %w", err)
	}
	return EncodeFrame(payload)
}

// EncodeResponse marshals and frames a response.
func EncodeResponse(resp *Response) ([]byte, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshaling response: %w", err)
	}
	return EncodeFrame(payload)
}

// ParseCommand decodes a command payload. A missing type is a structural
// error: there is nothing to dispatch on.
func ParseCommand(payload []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("parsing command: %w", err)
	}
	if cmd.Type == "" {
		return nil, errors.New("parsing command: missing command type")
	}
	return &cmd, nil
}

// ParseResponse decodes a response payload.
func ParseResponse(payload []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	switch resp.Status {
	case StatusSuccess, StatusError:
		return &resp, nil
	default:
		return nil, fmt.Errorf("parsing response: invalid status %q", resp.Status)
	}
}
