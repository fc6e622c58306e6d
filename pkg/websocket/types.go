package websocket

import "github.com/getmockd/frontd/pkg/transport"

// Opcode is a WebSocket frame opcode.
type Opcode = transport.Opcode

// Frame opcodes accepted by Send.
const (
	OpcodeContinuation = transport.OpcodeContinuation
	OpcodeText         = transport.OpcodeText
	OpcodeBinary       = transport.OpcodeBinary
	OpcodeClose        = transport.OpcodeClose
	OpcodePing         = transport.OpcodePing
	OpcodePong         = transport.OpcodePong
)

// Stats holds registry counters.
type Stats struct {
	Open       int   `json:"open"`
	Opened     int64 `json:"opened"`
	Removed    int64 `json:"removed"`
	Broadcasts int64 `json:"broadcasts"`
}
