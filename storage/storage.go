// Package storage defines the storage client contract consumed by the
// onboarding saga.
//
// The backing store only guarantees atomicity for a single entity, so every
// method touches exactly one record. Implementations must report unique
// constraint collisions with ErrUniqueViolation so callers can distinguish a
// concurrent duplicate from any other failure.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// IDField is the document key holding the record id.
const IDField = "id"

// Collection names used by the onboarding schema.
const (
	Profiles          = "profiles"
	RoleAssignments   = "role_assignments"
	OrgUnits          = "org_units"
	Professionals     = "professionals"
	UnitProfessionals = "unit_professionals"
	ServiceTemplates  = "service_templates"
)

var (
	// ErrUniqueViolation is returned when a write would break a unique index.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
)

// IsUniqueViolation reports whether err is (or wraps) ErrUniqueViolation.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// Document is a single stored record.
type Document map[string]any

// ID returns the record id, or "" when the document has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// String returns the string value stored under key, or "".
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns the boolean value stored under key and whether it was set.
func (d Document) Bool(key string) (bool, bool) {
	b, ok := d[key].(bool)
	return b, ok
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Filter selects records whose fields equal every value in the filter.
type Filter map[string]any

// Matches reports whether doc satisfies the filter.
func (f Filter) Matches(doc Document) bool {
	for k, want := range f {
		got, ok := doc[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

// Collection is a set of records of one entity kind.
type Collection interface {
	// Insert stores a new record and returns its id.
	Insert(ctx context.Context, doc Document) (string, error)

	// FindOne returns the first record matching filter, or nil, nil.
	FindOne(ctx context.Context, filter Filter) (Document, error)

	// Update applies patch to the record. A nil patch value unsets the field.
	Update(ctx context.Context, id string, patch Document) error

	// Delete removes the record.
	Delete(ctx context.Context, id string) error
}

// Client hands out collections by name.
type Client interface {
	Collection(name string) Collection
}

// UniqueIndex is a unique constraint over an ordered list of fields.
type UniqueIndex struct {
	Name   string
	Fields []string
}

// Key returns the index key for doc and whether every indexed field is set.
func (u UniqueIndex) Key(doc Document) (string, bool) {
	parts := make([]string, 0, len(u.Fields))
	for _, f := range u.Fields {
		v, ok := doc[f]
		if !ok || v == nil {
			return "", false
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return u.Name + "\x00" + strings.Join(parts, "\x00"), true
}

// DefaultIndexes returns the unique constraints of the onboarding schema.
func DefaultIndexes() map[string][]UniqueIndex {
	return map[string][]UniqueIndex{
		Profiles:          {{Name: "user", Fields: []string{"user_id"}}},
		RoleAssignments:   {{Name: "user_role", Fields: []string{"user_id", "role"}}},
		OrgUnits:          {{Name: "owner_name", Fields: []string{"owner_id", "name"}}},
		Professionals:     {{Name: "user", Fields: []string{"user_id"}}},
		UnitProfessionals: {{Name: "membership", Fields: []string{"unit_id", "professional_id"}}},
		ServiceTemplates:  {{Name: "unit_name", Fields: []string{"unit_id", "name"}}},
	}
}

// ApplyPatch returns a copy of doc with patch applied.
func ApplyPatch(doc, patch Document) Document {
	out := doc.Clone()
	for k, v := range patch {
		if k == IDField {
			continue
		}
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
