package delta

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
)

// envelope is the persisted JSON shape of one entity delta.
type envelope struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Field      string `json:"field"`
	OldValue   string `json:"old_value,omitempty"`
	NewValue   string `json:"new_value"`
}

// Encode serializes a validated delta set for staging storage.
func Encode(deltas []Entity) ([]byte, error) {
	if err := ValidateAll(deltas); err != nil {
		return nil, err
	}
	envelopes := make([]envelope, 0, len(deltas))
	for _, d := range deltas {
		change := d.Change()
		envelopes = append(envelopes, envelope{
			EntityType: string(d.EntityType()),
			EntityID:   d.EntityID(),
			Field:      change.Field,
			OldValue:   change.OldValue,
			NewValue:   change.NewValue,
		})
	}
	data, err := json.Marshal(envelopes)
	if err != nil {
		return nil, fmt.Errorf("marshal entity deltas: %w", err)
	}
	return data, nil
}

// Decode deserializes a stored delta set back into typed variants. Unknown
// entity type tags fail decoding.
func Decode(data []byte) ([]Entity, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var envelopes []envelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("unmarshal entity deltas: %w", err)
	}
	deltas := make([]Entity, 0, len(envelopes))
	for _, env := range envelopes {
		change := FieldChange{Field: env.Field, OldValue: env.OldValue, NewValue: env.NewValue}
		var d Entity
		switch reference.EntityType(env.EntityType) {
		case reference.EntityCharacter:
			d = Character{CharacterID: env.EntityID, FieldChange: change}
		case reference.EntityPlace:
			d = Place{PlaceID: env.EntityID, FieldChange: change}
		case reference.EntityFaction:
			d = Faction{FactionID: env.EntityID, FieldChange: change}
		default:
			return nil, apperrors.WithMetadata(apperrors.CodeDeltaInvalidEntityType, "unknown entity delta type", map[string]string{
				"entity_type": env.EntityType,
			})
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}
