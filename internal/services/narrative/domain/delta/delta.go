// Package delta defines the typed world-state changes a staged chunk carries.
//
// Deltas are tagged variants per entity type rather than free-form maps, so a
// malformed delta fails when the proposal is built, not in the middle of a
// commit transaction.
package delta

import (
	"strings"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
)

// FieldChange is the common shape of one entity field transition. OldValue is
// the value the proposer observed; commit refuses the delta if the stored
// value has since diverged from a non-empty OldValue.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

// Entity is one typed entity delta.
type Entity interface {
	// EntityType returns the tag identifying the variant.
	EntityType() reference.EntityType
	// EntityID returns the target entity's identity.
	EntityID() string
	// Change returns the field transition this delta applies.
	Change() FieldChange
	// Validate checks the delta at construction time.
	Validate() error
}

// Character updates one field of a character record.
type Character struct {
	CharacterID string
	FieldChange
}

// Place updates one field of a place record.
type Place struct {
	PlaceID string
	FieldChange
}

// Faction updates one field of a faction record.
type Faction struct {
	FactionID string
	FieldChange
}

func (d Character) EntityType() reference.EntityType { return reference.EntityCharacter }
func (d Character) EntityID() string                 { return d.CharacterID }
func (d Character) Change() FieldChange              { return d.FieldChange }

func (d Place) EntityType() reference.EntityType { return reference.EntityPlace }
func (d Place) EntityID() string                 { return d.PlaceID }
func (d Place) Change() FieldChange              { return d.FieldChange }

func (d Faction) EntityType() reference.EntityType { return reference.EntityFaction }
func (d Faction) EntityID() string                 { return d.FactionID }
func (d Faction) Change() FieldChange              { return d.FieldChange }

func validate(entityID string, change FieldChange) error {
	if strings.TrimSpace(entityID) == "" {
		return apperrors.New(apperrors.CodeDeltaEmptyEntityID, "delta entity id is required")
	}
	if strings.TrimSpace(change.Field) == "" {
		return apperrors.New(apperrors.CodeDeltaEmptyField, "delta field is required")
	}
	return nil
}

func (d Character) Validate() error { return validate(d.CharacterID, d.FieldChange) }
func (d Place) Validate() error     { return validate(d.PlaceID, d.FieldChange) }
func (d Faction) Validate() error   { return validate(d.FactionID, d.FieldChange) }

// ValidateAll validates every delta in the set.
func ValidateAll(deltas []Entity) error {
	for _, d := range deltas {
		if d == nil {
			return apperrors.New(apperrors.CodeDeltaInvalidEntityType, "nil entity delta")
		}
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}
