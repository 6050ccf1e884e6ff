package syncpipe

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// PayloadVersion is the envelope version written by EncodePayload.
const PayloadVersion = 1

// RequestKind names the domain record a payload was built from.
type RequestKind string

const (
	// KindItemRequest is a parts-replenishment request against an item.
	KindItemRequest RequestKind = "item_request"
	// KindEquipmentRequest is the older equipment-level request.
	KindEquipmentRequest RequestKind = "equipment_request"
)

// Part is a requested part, denormalized with its display name.
type Part struct {
	ItemID   string `json:"item_id" validate:"required"`
	ItemName string `json:"item_name,omitempty"`
}

// Payload is a fully denormalized request record. The sink needs no further lookups to append it.
type Payload struct {
	Kind        RequestKind `json:"kind" validate:"required,oneof=item_request equipment_request"`
	ID          string      `json:"id" validate:"required"`
	ItemID      string      `json:"item_id,omitempty"`
	ItemName    string      `json:"item_name,omitempty"`
	PlantID     string      `json:"plant_id,omitempty"`
	PlantName   string      `json:"plant_name,omitempty"`
	Description string      `json:"description,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	Requestor   string      `json:"requestor,omitempty"`
	Status      string      `json:"status,omitempty"`
	Parts       []Part      `json:"parts,omitempty" validate:"omitempty,dive"`
	CreatedAt   time.Time   `json:"created_at" validate:"required"`
	UpdatedAt   time.Time   `json:"updated_at,omitempty"`
}

type envelope struct {
	Version *int            `json:"version"`
	Data    json.RawMessage `json:"data"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the fields every sink relies on.
func (p Payload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	return nil
}

// EncodePayload validates p and wraps it in a versioned envelope.
func EncodePayload(p Payload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return encodeEnvelope(p)
}

// encodeEnvelope skips validation so that a payload the sink rejected can still be stored for review.
func encodeEnvelope(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	version := PayloadVersion

	return json.Marshal(envelope{Version: &version, Data: data})
}

// DecodePayload restores a payload written by EncodePayload.
// Objects without a version field are legacy rows and decode as item requests.
func DecodePayload(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Payload{}, fmt.Errorf("%w: empty request data", ErrMalformedPayload)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	data := raw
	switch {
	case env.Version == nil:
	case *env.Version == PayloadVersion:
		data = env.Data
	default:
		return Payload{}, fmt.Errorf("%w: version %d", ErrPayloadVersion, *env.Version)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Version == nil && p.Kind == "" {
		p.Kind = KindItemRequest
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}

	return p, nil
}
