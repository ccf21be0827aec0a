// Package protocol defines the JSON frame envelope exchanged with chat
// clients.
//
// Every frame carries a "type" discriminator. Inbound frames are decoded
// in two steps: the envelope first for dispatch, then the payload struct
// for the matched type. Outbound frames are plain structs with their type
// pre-filled by the constructors in frames.go.
package protocol
