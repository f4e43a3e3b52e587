// Package rpc carries the Connect plumbing shared by every service: a JSON
// codec for plain Go messages and helpers to mount unary procedures.
package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Codec names Connect negotiates for JSON bodies.
const (
	CodecJSON        = "json"
	CodecJSONCharset = "json; charset=utf-8"
)

// JSONCodec marshals plain structs with encoding/json. It replaces the
// protojson codec, which only accepts generated messages.
type JSONCodec struct {
	name string
}

var _ connect.Codec = JSONCodec{}

// NewJSONCodec returns a codec registered under name.
func NewJSONCodec(name string) JSONCodec { return JSONCodec{name: name} }

func (c JSONCodec) Name() string { return c.name }

func (c JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c JSONCodec) Unmarshal(data []byte, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

// HandlerOptions registers the JSON codecs on a handler.
func HandlerOptions() connect.HandlerOption {
	return connect.WithHandlerOptions(
		connect.WithCodec(NewJSONCodec(CodecJSON)),
		connect.WithCodec(NewJSONCodec(CodecJSONCharset)),
	)
}

// ClientOptions makes a client speak the Connect protocol with JSON bodies.
func ClientOptions() connect.ClientOption {
	return connect.WithClientOptions(
		connect.WithCodec(NewJSONCodec(CodecJSON)),
	)
}
