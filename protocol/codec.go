// Package protocol defines the JSON wire format exchanged with clients:
// a closed set of inbound variants discriminated by an "action" field,
// and the outbound frames built by the room worker.
package protocol

import (
	"chat-rooms/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Inbound is the closed set of client messages. Anything that does not
// decode into exactly one of these variants is a protocol violation.
type Inbound interface {
	isInbound()
}

type Connected struct {
	UserID   string
	Username string
}

type Send struct {
	UserID   string
	Username string
	Message  string
}

// Image is accepted but not handled yet. Reserved hook.
type Image struct {
	Src string
}

func (Connected) isInbound() {}
func (Send) isInbound()      {}
func (Image) isInbound()     {}

// Raw decode targets. Pointer fields distinguish an absent field from an
// empty string; the "required" rule rejects nil, wrong JSON types fail
// at unmarshal time.
type rawConnected struct {
	UserID   *string `json:"userId" validate:"required"`
	Username *string `json:"username" validate:"required"`
}

type rawSend struct {
	UserID   *string `json:"userId" validate:"required"`
	Username *string `json:"username" validate:"required"`
	Message  *string `json:"message" validate:"required"`
}

type rawImage struct {
	Src *string `json:"src" validate:"required"`
}

type envelope struct {
	Action *string `json:"action"`
}

// DecodeInbound parses a raw payload into one of the inbound variants.
// Validation is structural only: discriminator known, required fields
// present, primitive types correct. No partial acceptance: any failure
// yields ErrProtocolViolation and no variant.
func DecodeInbound(payload []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrProtocolViolation, err)
	}
	if env.Action == nil {
		return nil, fmt.Errorf("%w: missing action", errors.ErrProtocolViolation)
	}

	switch *env.Action {
	case "connected":
		var raw rawConnected
		if err := decodeStrict(payload, &raw); err != nil {
			return nil, err
		}
		return Connected{UserID: *raw.UserID, Username: *raw.Username}, nil
	case "send":
		var raw rawSend
		if err := decodeStrict(payload, &raw); err != nil {
			return nil, err
		}
		return Send{UserID: *raw.UserID, Username: *raw.Username, Message: *raw.Message}, nil
	case "image":
		var raw rawImage
		if err := decodeStrict(payload, &raw); err != nil {
			return nil, err
		}
		return Image{Src: *raw.Src}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", errors.ErrProtocolViolation, *env.Action)
	}
}

func decodeStrict(payload []byte, target any) error {
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrProtocolViolation, err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrProtocolViolation, err)
	}
	return nil
}
