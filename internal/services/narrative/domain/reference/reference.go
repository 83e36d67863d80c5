// Package reference defines typed links between chunks and world entities.
package reference

import (
	"sort"
	"strings"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
)

// EntityType identifies the kind of world entity a chunk can reference.
type EntityType string

const (
	EntityCharacter EntityType = "character"
	EntityPlace     EntityType = "place"
	EntityFaction   EntityType = "faction"
)

// Kind tags how a chunk touches an entity.
type Kind string

const (
	// KindSetting marks the entity as the scene's setting.
	KindSetting Kind = "setting"
	// KindPresent marks an entity that takes part in the scene.
	KindPresent Kind = "present"
	// KindMentioned marks an entity only spoken of.
	KindMentioned Kind = "mentioned"
	// KindTransit marks an entity passed through or by.
	KindTransit Kind = "transit"
)

// Entity names one world entity.
type Entity struct {
	Type EntityType
	ID   string
}

// Reference links a chunk to an entity with a kind tag. Several references
// may exist per chunk, at most one per (entity, kind) pair.
type Reference struct {
	Entity Entity
	Kind   Kind
}

// ValidEntityType reports whether the entity type is known.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityCharacter, EntityPlace, EntityFaction:
		return true
	}
	return false
}

// ValidKind reports whether the reference kind is known.
func ValidKind(k Kind) bool {
	switch k {
	case KindSetting, KindPresent, KindMentioned, KindTransit:
		return true
	}
	return false
}

// Validate checks the entity's type and identity.
func (e Entity) Validate() error {
	if !ValidEntityType(e.Type) {
		return apperrors.WithMetadata(apperrors.CodeReferenceInvalidEntityType, "unknown entity type", map[string]string{
			"entity_type": string(e.Type),
		})
	}
	if strings.TrimSpace(e.ID) == "" {
		return apperrors.New(apperrors.CodeReferenceEmptyEntityID, "entity id is required")
	}
	return nil
}

// Validate checks the reference's entity and kind.
func (r Reference) Validate() error {
	if err := r.Entity.Validate(); err != nil {
		return err
	}
	if !ValidKind(r.Kind) {
		return apperrors.WithMetadata(apperrors.CodeReferenceInvalidKind, "unknown reference kind", map[string]string{
			"kind": string(r.Kind),
		})
	}
	return nil
}

// Normalize validates a reference set, drops duplicates, and returns it in a
// deterministic order, so rebuilding a chunk's index rows from the same input
// always yields identical stored state.
func Normalize(refs []Reference) ([]Reference, error) {
	seen := make(map[Reference]struct{}, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, ref := range refs {
		if err := ref.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Entity.Type != b.Entity.Type {
			return a.Entity.Type < b.Entity.Type
		}
		if a.Entity.ID != b.Entity.ID {
			return a.Entity.ID < b.Entity.ID
		}
		return a.Kind < b.Kind
	})
	return out, nil
}
