package onboard

import (
	"context"
	"strings"

	"github.com/fortressi/onboard/storage"
)

// RegisterProfessional records the actor as a practicing professional. It
// is skipped when the actor did not opt in.
type RegisterProfessional struct{ base }

func NewRegisterProfessional(deps Deps) *RegisterProfessional {
	return &RegisterProfessional{base{typ: TypeRegisterProfessional, deps: deps}}
}

func (o *RegisterProfessional) Validate(ctx context.Context, oc *OperationContext) error {
	if err := o.validateSession(ctx, oc); err != nil {
		return err
	}
	if oc.Input.SelfProfessional && strings.TrimSpace(oc.Input.OwnerName) == "" {
		return ValidationFailed(o.typ, "professional name is required")
	}
	return nil
}

func (o *RegisterProfessional) Execute(ctx context.Context, oc *OperationContext) Result {
	if !oc.Input.SelfProfessional {
		return o.skip(oc)
	}
	doc := storage.Document{
		"user_id": oc.ActorID,
		"name":    strings.TrimSpace(oc.Input.OwnerName),
		"active":  true,
	}
	if reg := strings.TrimSpace(oc.Input.ProfessionalRegistry); reg != "" {
		doc["registry"] = reg
	}
	return o.insertOnce(ctx, oc, storage.Professionals, storage.Filter{"user_id": oc.ActorID}, doc)
}

// LinkProfessionalToUnit adds the actor's professional record to a unit.
// It is skipped when the actor did not opt in as professional.
type LinkProfessionalToUnit struct{ base }

func NewLinkProfessionalToUnit(deps Deps) *LinkProfessionalToUnit {
	return &LinkProfessionalToUnit{base{typ: TypeLinkProfessionalToUnit, deps: deps}}
}

func (o *LinkProfessionalToUnit) Validate(ctx context.Context, oc *OperationContext) error {
	if err := o.validateSession(ctx, oc); err != nil {
		return err
	}
	if oc.Input.SelfProfessional && oc.UnitID == "" {
		return ValidationFailed(o.typ, "unit id is required")
	}
	return nil
}

func (o *LinkProfessionalToUnit) Execute(ctx context.Context, oc *OperationContext) Result {
	if !oc.Input.SelfProfessional {
		return o.skip(oc)
	}
	professional, err := o.collection(storage.Professionals).FindOne(ctx, storage.Filter{"user_id": oc.ActorID})
	if err != nil {
		return o.storageFail(oc, err)
	}
	if professional == nil {
		return o.storageFail(oc, storage.ErrNotFound)
	}

	lookup := storage.Filter{"unit_id": oc.UnitID, "professional_id": professional.ID()}
	return o.insertOnce(ctx, oc, storage.UnitProfessionals, lookup, storage.Document{
		"unit_id":         oc.UnitID,
		"professional_id": professional.ID(),
	})
}
