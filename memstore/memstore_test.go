package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortressi/onboard/storage"
)

func TestInsertFindUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewDefault()
	profiles := s.Collection(storage.Profiles)

	id, err := profiles.Insert(ctx, storage.Document{"user_id": "u1", "display_name": "Ana"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := profiles.FindOne(ctx, storage.Filter{"user_id": "u1"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, id, doc.ID())
	assert.Equal(t, "Ana", doc.String("display_name"))

	// Returned documents are copies.
	doc["display_name"] = "mutated"
	again, err := profiles.FindOne(ctx, storage.Filter{"user_id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.String("display_name"))

	require.NoError(t, profiles.Update(ctx, id, storage.Document{"display_name": "Bia", "nickname": "b"}))
	doc, err = profiles.FindOne(ctx, storage.Filter{"user_id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Bia", doc.String("display_name"))
	assert.Equal(t, "b", doc.String("nickname"))

	require.NoError(t, profiles.Update(ctx, id, storage.Document{"nickname": nil}))
	doc, err = profiles.FindOne(ctx, storage.Filter{"user_id": "u1"})
	require.NoError(t, err)
	_, has := doc["nickname"]
	assert.False(t, has, "nil patch value unsets the field")

	require.NoError(t, profiles.Delete(ctx, id))
	doc, err = profiles.FindOne(ctx, storage.Filter{"user_id": "u1"})
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Equal(t, 0, s.Count(storage.Profiles))
}

func TestUniqueIndex(t *testing.T) {
	ctx := context.Background()
	s := NewDefault()
	roles := s.Collection(storage.RoleAssignments)

	_, err := roles.Insert(ctx, storage.Document{"user_id": "u1", "role": "owner"})
	require.NoError(t, err)

	_, err = roles.Insert(ctx, storage.Document{"user_id": "u1", "role": "owner"})
	require.Error(t, err)
	assert.True(t, storage.IsUniqueViolation(err))

	// Different role for the same user is fine.
	_, err = roles.Insert(ctx, storage.Document{"user_id": "u1", "role": "staff"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count(storage.RoleAssignments))
}

func TestDeleteReleasesIndex(t *testing.T) {
	ctx := context.Background()
	s := NewDefault()
	units := s.Collection(storage.OrgUnits)

	id, err := units.Insert(ctx, storage.Document{"owner_id": "u1", "name": "Clinic A"})
	require.NoError(t, err)
	require.NoError(t, units.Delete(ctx, id))

	_, err = units.Insert(ctx, storage.Document{"owner_id": "u1", "name": "Clinic A"})
	assert.NoError(t, err)
}

func TestUpdateIndexCollision(t *testing.T) {
	ctx := context.Background()
	s := NewDefault()
	units := s.Collection(storage.OrgUnits)

	_, err := units.Insert(ctx, storage.Document{"owner_id": "u1", "name": "A"})
	require.NoError(t, err)
	id, err := units.Insert(ctx, storage.Document{"owner_id": "u1", "name": "B"})
	require.NoError(t, err)

	err = units.Update(ctx, id, storage.Document{"name": "A"})
	assert.True(t, storage.IsUniqueViolation(err))

	// The failed update left B's index key in place.
	_, err = units.Insert(ctx, storage.Document{"owner_id": "u1", "name": "B"})
	assert.True(t, storage.IsUniqueViolation(err))
}

func TestMissingRecord(t *testing.T) {
	ctx := context.Background()
	s := NewDefault()
	c := s.Collection(storage.Profiles)

	assert.ErrorIs(t, c.Update(ctx, "nope", storage.Document{"a": "b"}), storage.ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, "nope"), storage.ErrNotFound)
}

func TestInjectFault(t *testing.T) {
	ctx := context.Background()
	s := NewDefault()
	c := s.Collection(storage.Professionals)
	boom := errors.New("boom")

	s.InjectFault(storage.Professionals, MethodInsert, boom)
	_, err := c.Insert(ctx, storage.Document{"user_id": "u1"})
	assert.ErrorIs(t, err, boom)

	// One-shot: the next insert goes through.
	id, err := c.Insert(ctx, storage.Document{"user_id": "u1"})
	require.NoError(t, err)

	s.InjectFault(storage.Professionals, MethodUpdate, ErrDropWrite)
	require.NoError(t, c.Update(ctx, id, storage.Document{"licence": "CRM-1"}))
	doc, err := c.FindOne(ctx, storage.Filter{"user_id": "u1"})
	require.NoError(t, err)
	assert.Empty(t, doc.String("licence"), "dropped write must not persist")

	s.InjectFault(storage.Professionals, MethodFindOne, boom)
	_, err = c.FindOne(ctx, storage.Filter{"user_id": "u1"})
	assert.ErrorIs(t, err, boom)
}

func TestAllOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := NewDefault()
	c := s.Collection(storage.ServiceTemplates)
	for _, id := range []string{"c", "a", "b"} {
		_, err := c.Insert(ctx, storage.Document{storage.IDField: id, "unit_id": "u", "name": id})
		require.NoError(t, err)
	}

	docs := s.All(storage.ServiceTemplates)
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].ID())
	assert.Equal(t, "b", docs[1].ID())
	assert.Equal(t, "c", docs[2].ID())
}
