package onboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	env := newTestEnv(t)
	r := NewDefaultRegistry(env.deps)

	assert.Equal(t, []OperationType{
		TypeAssignOwnerRole,
		TypeBindRoleToUnit,
		TypeCreateOrgUnit,
		TypeCreateOwnerProfile,
		TypeCreateServiceTemplate,
		TypeLinkProfessionalToUnit,
		TypeMarkOnboardingComplete,
		TypeRegisterProfessional,
	}, r.Types())

	for _, typ := range r.Types() {
		op, err := r.Get(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, op.Type())
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	r := NewRegistry()
	require.NoError(t, r.Register(NewCreateOrgUnit(env.deps)))
	assert.Error(t, r.Register(NewCreateOrgUnit(env.deps)))

	_, err := r.Get(TypeBindRoleToUnit)
	assert.ErrorIs(t, err, ErrOperationNotFound)
}
