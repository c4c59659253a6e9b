package onboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fortressi/onboard/identity"
	"github.com/fortressi/onboard/storage"
)

// OperationType tags an Operation variant. Ledger entries carry the tag so
// Rollback can dispatch without looking at operation ids.
type OperationType string

const (
	TypeCreateOwnerProfile     OperationType = "create_owner_profile"
	TypeAssignOwnerRole        OperationType = "assign_owner_role"
	TypeCreateOrgUnit          OperationType = "create_org_unit"
	TypeBindRoleToUnit         OperationType = "bind_role_to_unit"
	TypeRegisterProfessional   OperationType = "register_professional"
	TypeLinkProfessionalToUnit OperationType = "link_professional_to_unit"
	TypeCreateServiceTemplate  OperationType = "create_service_template"
	TypeMarkOnboardingComplete OperationType = "mark_onboarding_complete"
)

func (t OperationType) String() string {
	return string(t)
}

// Outcome describes what a successful Execute did to the store.
type Outcome string

const (
	OutcomeCreate    Outcome = "create"
	OutcomeUpdate    Outcome = "update"
	OutcomeExists    Outcome = "exists"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkip      Outcome = "skip"
)

// Mutated reports whether the outcome changed the store.
func (o Outcome) Mutated() bool {
	return o == OutcomeCreate || o == OutcomeUpdate
}

// RollbackInfo is the compensation payload recorded for a step that mutated
// the store.
type RollbackInfo struct {
	Type       OperationType `json:"type"`
	Kind       Outcome       `json:"kind"`
	Collection string        `json:"collection"`
	RecordID   string        `json:"record_id"`
	// Previous holds the field values an update overwrote. A nil value
	// means the field was absent.
	Previous map[string]any `json:"previous,omitempty"`
}

// Result is what Execute returns.
type Result struct {
	Success     bool
	OperationID string
	Outcome     Outcome
	// RecordID is the id of the entity created, updated or found.
	RecordID string
	Data     storage.Document
	Err      error
	// Rollback is set only when Success is true and Outcome mutated the store.
	Rollback *RollbackInfo
}

// Operation is one saga step. Implementations are stateless.
type Operation interface {
	Type() OperationType

	// Validate returns nil when the step may run.
	Validate(ctx context.Context, oc *OperationContext) error

	// Execute performs at most one create or update against the store.
	Execute(ctx context.Context, oc *OperationContext) Result

	// Rollback undoes what Execute did. It logs failures and never panics.
	Rollback(ctx context.Context, oc *OperationContext, info RollbackInfo)
}

// Deps are the collaborators shared by every operation.
type Deps struct {
	Storage  storage.Client
	Identity identity.Accessor
	Logger   *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func newOperationID(t OperationType) string {
	return string(t) + "-" + uuid.NewString()
}

// base carries the shared behaviour of the concrete operations. Its
// Validate is the default: the actor must hold a valid session.
type base struct {
	typ  OperationType
	deps Deps
}

func (b base) Type() OperationType {
	return b.typ
}

func (b base) Validate(ctx context.Context, oc *OperationContext) error {
	return b.validateSession(ctx, oc)
}

func (b base) validateSession(ctx context.Context, oc *OperationContext) error {
	if oc.ActorID == "" {
		return ValidationFailed(b.typ, "missing actor")
	}
	if b.deps.Identity == nil || !b.deps.Identity.IsSessionValid(ctx, oc.ActorID) {
		return ValidationFailed(b.typ, "session for %s is not valid", oc.ActorID)
	}
	return nil
}

func (b base) collection(name string) storage.Collection {
	return b.deps.Storage.Collection(name)
}

func (b base) log(oc *OperationContext) *zap.Logger {
	return b.deps.logger().With(
		zap.String("saga_id", oc.SagaID),
		zap.String("operation_id", oc.OperationID),
		zap.Stringer("operation", b.typ),
	)
}

func (b base) ok(oc *OperationContext, outcome Outcome, doc storage.Document, rb *RollbackInfo) Result {
	return Result{
		Success:     true,
		OperationID: oc.OperationID,
		Outcome:     outcome,
		RecordID:    doc.ID(),
		Data:        doc,
		Rollback:    rb,
	}
}

func (b base) fail(oc *OperationContext, err error) Result {
	return Result{OperationID: oc.OperationID, Err: err}
}

func (b base) storageFail(oc *OperationContext, err error) Result {
	return b.fail(oc, StorageFailed(b.typ, err))
}

func (b base) skip(oc *OperationContext) Result {
	return Result{Success: true, OperationID: oc.OperationID, Outcome: OutcomeSkip}
}

// insertOnce creates doc unless a record matching lookup already exists.
func (b base) insertOnce(ctx context.Context, oc *OperationContext, coll string, lookup storage.Filter, doc storage.Document) Result {
	existing, err := b.collection(coll).FindOne(ctx, lookup)
	if err != nil {
		return b.storageFail(oc, err)
	}
	if existing != nil {
		return b.ok(oc, OutcomeExists, existing, nil)
	}
	return b.insert(ctx, oc, coll, lookup, doc)
}

// insert creates doc. A unique collision means a concurrent attempt won the
// race, which counts as success without compensation.
func (b base) insert(ctx context.Context, oc *OperationContext, coll string, lookup storage.Filter, doc storage.Document) Result {
	c := b.collection(coll)
	id, err := c.Insert(ctx, doc)
	if storage.IsUniqueViolation(err) {
		b.log(oc).Debug("insert raced with a concurrent attempt", zap.String("collection", coll))
		winner, ferr := c.FindOne(ctx, lookup)
		if ferr != nil {
			return b.storageFail(oc, ferr)
		}
		if winner == nil {
			return b.storageFail(oc, fmt.Errorf("%s: conflicting record: %w", coll, storage.ErrNotFound))
		}
		return b.ok(oc, OutcomeDuplicate, winner, nil)
	}
	if err != nil {
		return b.storageFail(oc, err)
	}
	created := doc.Clone()
	created[storage.IDField] = id
	return b.ok(oc, OutcomeCreate, created, &RollbackInfo{
		Type:       b.typ,
		Kind:       OutcomeCreate,
		Collection: coll,
		RecordID:   id,
	})
}

// update applies patch to doc, capturing the overwritten fields.
func (b base) update(ctx context.Context, oc *OperationContext, coll string, doc storage.Document, patch storage.Document) Result {
	previous := make(map[string]any, len(patch))
	for k := range patch {
		v, ok := doc[k]
		if !ok {
			v = nil
		}
		previous[k] = v
	}
	if err := b.collection(coll).Update(ctx, doc.ID(), patch); err != nil {
		return b.storageFail(oc, err)
	}
	return b.ok(oc, OutcomeUpdate, storage.ApplyPatch(doc, patch), &RollbackInfo{
		Type:       b.typ,
		Kind:       OutcomeUpdate,
		Collection: coll,
		RecordID:   doc.ID(),
		Previous:   previous,
	})
}

// Rollback is the default compensation: delete what was created, restore
// what was updated, and ignore everything else.
func (b base) Rollback(ctx context.Context, oc *OperationContext, info RollbackInfo) {
	log := b.log(oc).With(zap.String("kind", string(info.Kind)), zap.String("record_id", info.RecordID))

	var err error
	switch info.Kind {
	case OutcomeCreate:
		err = b.collection(info.Collection).Delete(ctx, info.RecordID)
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug("record already gone")
			err = nil
		}
	case OutcomeUpdate:
		err = b.collection(info.Collection).Update(ctx, info.RecordID, storage.Document(info.Previous))
	default:
		return
	}
	if err != nil {
		log.Error("compensation failed", zap.Error(CompensationFailed(b.typ, oc.OperationID, err)))
		return
	}
	log.Debug("compensated")
}
