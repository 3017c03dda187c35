// Package rpc carries actions to the in-browser client over a
// WebSocket: one request/response envelope pair, one peer slot, and a
// pending-call table matched by id.
package rpc

import "encoding/json"

const (
	TypeRequest  = "REQUEST"
	TypeResponse = "RESPONSE"
)

// Envelope is the wire frame in both directions. Requests carry Action
// and Params; responses carry Payload.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Action  string          `json:"action,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Payload *Payload        `json:"payload,omitempty"`
}

// Payload is the response body: data on success, a message on failure.
type Payload struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}
