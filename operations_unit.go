package onboard

import (
	"context"
	"strings"

	"github.com/fortressi/onboard/storage"
)

// CreateOrgUnit creates the tenant's organizational unit (the clinic).
type CreateOrgUnit struct{ base }

func NewCreateOrgUnit(deps Deps) *CreateOrgUnit {
	return &CreateOrgUnit{base{typ: TypeCreateOrgUnit, deps: deps}}
}

func (o *CreateOrgUnit) Validate(ctx context.Context, oc *OperationContext) error {
	if err := o.validateSession(ctx, oc); err != nil {
		return err
	}
	if strings.TrimSpace(oc.Input.UnitName) == "" {
		return ValidationFailed(o.typ, "unit name is required")
	}
	return nil
}

func (o *CreateOrgUnit) Execute(ctx context.Context, oc *OperationContext) Result {
	name := strings.TrimSpace(oc.Input.UnitName)
	lookup := storage.Filter{"owner_id": oc.ActorID, "name": name}
	return o.insertOnce(ctx, oc, storage.OrgUnits, lookup, storage.Document{
		"owner_id": oc.ActorID,
		"name":     name,
	})
}

// BindRoleToUnit scopes the actor's owner role to a unit.
type BindRoleToUnit struct{ base }

func NewBindRoleToUnit(deps Deps) *BindRoleToUnit {
	return &BindRoleToUnit{base{typ: TypeBindRoleToUnit, deps: deps}}
}

func (o *BindRoleToUnit) Validate(ctx context.Context, oc *OperationContext) error {
	if err := o.validateSession(ctx, oc); err != nil {
		return err
	}
	if oc.UnitID == "" {
		return ValidationFailed(o.typ, "unit id is required")
	}
	return nil
}

func (o *BindRoleToUnit) Execute(ctx context.Context, oc *OperationContext) Result {
	role, err := o.collection(storage.RoleAssignments).FindOne(ctx, storage.Filter{
		"user_id": oc.ActorID,
		"role":    OwnerRole,
	})
	if err != nil {
		return o.storageFail(oc, err)
	}
	if role == nil {
		return o.storageFail(oc, storage.ErrNotFound)
	}
	if role.String("unit_id") == oc.UnitID {
		return o.ok(oc, OutcomeExists, role, nil)
	}
	return o.update(ctx, oc, storage.RoleAssignments, role, storage.Document{"unit_id": oc.UnitID})
}

// CreateServiceTemplate creates the unit's first service template.
type CreateServiceTemplate struct{ base }

func NewCreateServiceTemplate(deps Deps) *CreateServiceTemplate {
	return &CreateServiceTemplate{base{typ: TypeCreateServiceTemplate, deps: deps}}
}

func (o *CreateServiceTemplate) Validate(ctx context.Context, oc *OperationContext) error {
	if err := o.validateSession(ctx, oc); err != nil {
		return err
	}
	if strings.TrimSpace(oc.Input.ServiceName) == "" {
		return ValidationFailed(o.typ, "service name is required")
	}
	price, err := oc.Input.PriceValue()
	if err != nil {
		return ValidationFailed(o.typ, "%v", err)
	}
	if !price.IsPositive() {
		return ValidationFailed(o.typ, "price must be at least 0.01")
	}
	if oc.Input.DurationMinutes < 0 {
		return ValidationFailed(o.typ, "duration must not be negative")
	}
	return nil
}

func (o *CreateServiceTemplate) Execute(ctx context.Context, oc *OperationContext) Result {
	unit, err := o.collection(storage.OrgUnits).FindOne(ctx, storage.Filter{
		"owner_id": oc.ActorID,
		"name":     strings.TrimSpace(oc.Input.UnitName),
	})
	if err != nil {
		return o.storageFail(oc, err)
	}
	if unit == nil {
		return o.storageFail(oc, storage.ErrNotFound)
	}

	// Validate already accepted the price.
	price, _ := oc.Input.PriceValue()
	name := strings.TrimSpace(oc.Input.ServiceName)
	lookup := storage.Filter{"unit_id": unit.ID(), "name": name}
	return o.insertOnce(ctx, oc, storage.ServiceTemplates, lookup, storage.Document{
		"unit_id":          unit.ID(),
		"owner_id":         oc.ActorID,
		"name":             name,
		"price":            price.StringFixed(2),
		"duration_minutes": oc.Input.DurationMinutes,
		"active":           true,
	})
}
