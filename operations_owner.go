package onboard

import (
	"context"
	"errors"
	"strings"

	"github.com/fortressi/onboard/storage"
)

// OwnerRole is the role assigned to the actor who onboards a tenant.
const OwnerRole = "owner"

// DefaultOperations returns one instance of every onboarding operation.
func DefaultOperations(deps Deps) []Operation {
	return []Operation{
		NewCreateOwnerProfile(deps),
		NewAssignOwnerRole(deps),
		NewCreateOrgUnit(deps),
		NewBindRoleToUnit(deps),
		NewRegisterProfessional(deps),
		NewLinkProfessionalToUnit(deps),
		NewCreateServiceTemplate(deps),
		NewMarkOnboardingComplete(deps),
	}
}

// CreateOwnerProfile creates the actor's profile, or renames an existing
// one to the wizard's owner name.
type CreateOwnerProfile struct{ base }

func NewCreateOwnerProfile(deps Deps) *CreateOwnerProfile {
	return &CreateOwnerProfile{base{typ: TypeCreateOwnerProfile, deps: deps}}
}

func (o *CreateOwnerProfile) Validate(ctx context.Context, oc *OperationContext) error {
	if err := o.validateSession(ctx, oc); err != nil {
		return err
	}
	if strings.TrimSpace(oc.Input.OwnerName) == "" {
		return ValidationFailed(o.typ, "owner name is required")
	}
	return nil
}

func (o *CreateOwnerProfile) Execute(ctx context.Context, oc *OperationContext) Result {
	name := strings.TrimSpace(oc.Input.OwnerName)
	lookup := storage.Filter{"user_id": oc.ActorID}

	existing, err := o.collection(storage.Profiles).FindOne(ctx, lookup)
	if err != nil {
		return o.storageFail(oc, err)
	}
	if existing == nil {
		return o.insert(ctx, oc, storage.Profiles, lookup, storage.Document{
			"user_id":      oc.ActorID,
			"display_name": name,
			"first_access": true,
		})
	}
	if existing.String("display_name") == name {
		return o.ok(oc, OutcomeExists, existing, nil)
	}
	return o.update(ctx, oc, storage.Profiles, existing, storage.Document{"display_name": name})
}

// AssignOwnerRole grants the actor the owner role.
type AssignOwnerRole struct{ base }

func NewAssignOwnerRole(deps Deps) *AssignOwnerRole {
	return &AssignOwnerRole{base{typ: TypeAssignOwnerRole, deps: deps}}
}

func (o *AssignOwnerRole) Execute(ctx context.Context, oc *OperationContext) Result {
	lookup := storage.Filter{"user_id": oc.ActorID, "role": OwnerRole}
	return o.insertOnce(ctx, oc, storage.RoleAssignments, lookup, storage.Document{
		"user_id": oc.ActorID,
		"role":    OwnerRole,
	})
}

// MarkOnboardingComplete flips the profile's first-access flag to false and
// verifies the write by reading it back.
type MarkOnboardingComplete struct{ base }

func NewMarkOnboardingComplete(deps Deps) *MarkOnboardingComplete {
	return &MarkOnboardingComplete{base{typ: TypeMarkOnboardingComplete, deps: deps}}
}

var errFlagNotPersisted = errors.New("first access flag did not persist")

func (o *MarkOnboardingComplete) Execute(ctx context.Context, oc *OperationContext) Result {
	profiles := o.collection(storage.Profiles)
	lookup := storage.Filter{"user_id": oc.ActorID}

	profile, err := profiles.FindOne(ctx, lookup)
	if err != nil {
		return o.storageFail(oc, err)
	}
	if profile == nil {
		return o.storageFail(oc, storage.ErrNotFound)
	}
	if first, set := profile.Bool("first_access"); set && !first {
		return o.ok(oc, OutcomeExists, profile, nil)
	}

	res := o.update(ctx, oc, storage.Profiles, profile, storage.Document{"first_access": false})
	if !res.Success {
		return res
	}

	persisted, err := profiles.FindOne(ctx, lookup)
	if err != nil {
		return o.storageFail(oc, err)
	}
	if persisted == nil {
		return o.storageFail(oc, errFlagNotPersisted)
	}
	if first, set := persisted.Bool("first_access"); !set || first {
		return o.storageFail(oc, errFlagNotPersisted)
	}
	res.Data = persisted
	return res
}
