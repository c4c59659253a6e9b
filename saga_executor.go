package onboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ManagerState is the lifecycle state of a TransactionManager.
type ManagerState int

const (
	StateActive ManagerState = iota
	StateCompleted
	StateRolledBack
)

func (s ManagerState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further steps may run.
func (s ManagerState) Terminal() bool {
	return s != StateActive
}

// LedgerEntry records one successfully executed step.
type LedgerEntry struct {
	OperationID string
	Type        OperationType
	// Rollback is nil when the step did not mutate the store.
	Rollback *RollbackInfo
}

// StepResult is the normalized result of a step call.
type StepResult struct {
	OperationID string
	Type        OperationType
	Outcome     Outcome
	RecordID    string
	Data        any
	// UnitID is set by the unit steps: the unit created or found by
	// CreateOrgUnit, or the unit passed to the unit-scoped steps.
	UnitID string
}

// Summary is a read-only view of a manager for diagnostics.
type Summary struct {
	SagaID               string
	ActorID              string
	ExecutedOperationIDs []string
	Completed            bool
	HasRollbackData      bool
	State                ManagerState
}

// TransactionManager runs one onboarding attempt for one actor.
//
// Steps are meant to be called sequentially. A step call that overlaps
// another call fails with ErrBusy; Rollback waits for the call in flight.
type TransactionManager struct {
	// call serializes step calls and Rollback.
	call sync.Mutex

	// mu guards the fields below.
	mu     sync.RWMutex
	ledger []LedgerEntry
	state  ManagerState

	sagaID   string
	actorID  string
	input    Payload
	deps     Deps
	registry *Registry
	logger   *zap.Logger
	journal  *Journal
}

// Option configures a TransactionManager.
type Option func(*TransactionManager)

// WithRegistry replaces the default operation registry.
func WithRegistry(r *Registry) Option {
	return func(m *TransactionManager) {
		m.registry = r
	}
}

// WithSagaID sets the correlation id instead of generating one.
func WithSagaID(id string) Option {
	return func(m *TransactionManager) {
		m.sagaID = id
	}
}

// WithLogger overrides deps.Logger for the manager's own log lines.
func WithLogger(l *zap.Logger) Option {
	return func(m *TransactionManager) {
		m.logger = l
	}
}

// NewManager creates a manager for one onboarding attempt.
func NewManager(actorID string, input Payload, deps Deps, opts ...Option) *TransactionManager {
	m := &TransactionManager{
		sagaID:  uuid.NewString(),
		actorID: actorID,
		input:   input,
		deps:    deps,
		state:   StateActive,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = NewDefaultRegistry(deps)
	}
	if m.logger == nil {
		m.logger = deps.logger()
	}
	m.logger = m.logger.With(zap.String("saga_id", m.sagaID), zap.String("actor_id", actorID))
	m.journal = NewJournal(m.sagaID)
	return m
}

// CreateProfile runs the create_owner_profile step.
func (m *TransactionManager) CreateProfile(ctx context.Context) (StepResult, error) {
	return m.runStep(ctx, TypeCreateOwnerProfile, "")
}

// CreateRole runs the assign_owner_role step.
func (m *TransactionManager) CreateRole(ctx context.Context) (StepResult, error) {
	return m.runStep(ctx, TypeAssignOwnerRole, "")
}

// CreateOrgUnit runs the create_org_unit step. The result carries the unit id.
func (m *TransactionManager) CreateOrgUnit(ctx context.Context) (StepResult, error) {
	res, err := m.runStep(ctx, TypeCreateOrgUnit, "")
	if err == nil {
		res.UnitID = res.RecordID
	}
	return res, err
}

// BindRoleToUnit runs the bind_role_to_unit step for unitID.
func (m *TransactionManager) BindRoleToUnit(ctx context.Context, unitID string) (StepResult, error) {
	return m.runStep(ctx, TypeBindRoleToUnit, unitID)
}

// CreateProfessional runs the register_professional step.
func (m *TransactionManager) CreateProfessional(ctx context.Context) (StepResult, error) {
	return m.runStep(ctx, TypeRegisterProfessional, "")
}

// LinkProfessionalToUnit runs the link_professional_to_unit step for unitID.
func (m *TransactionManager) LinkProfessionalToUnit(ctx context.Context, unitID string) (StepResult, error) {
	return m.runStep(ctx, TypeLinkProfessionalToUnit, unitID)
}

// CreateServiceTemplate runs the create_service_template step.
func (m *TransactionManager) CreateServiceTemplate(ctx context.Context) (StepResult, error) {
	return m.runStep(ctx, TypeCreateServiceTemplate, "")
}

// MarkOnboardingComplete runs the mark_onboarding_complete step.
func (m *TransactionManager) MarkOnboardingComplete(ctx context.Context) (StepResult, error) {
	return m.runStep(ctx, TypeMarkOnboardingComplete, "")
}

// runStep validates and executes one operation, recording it in the ledger
// on success. It never panics; every failure is returned as an error and
// leaves the ledger untouched.
func (m *TransactionManager) runStep(ctx context.Context, t OperationType, unitID string) (StepResult, error) {
	log := m.logger.With(zap.Stringer("operation", t))

	if !m.call.TryLock() {
		log.Warn("step rejected: another call is in flight")
		return StepResult{Type: t}, fmt.Errorf("%s: %w", t, ErrBusy)
	}
	defer m.call.Unlock()

	if state := m.State(); state.Terminal() {
		log.Warn("step rejected: transaction is terminal", zap.Stringer("state", state))
		return StepResult{Type: t}, fmt.Errorf("%s: %w", t, ErrAlreadyCompleted)
	}

	op, err := m.registry.Get(t)
	if err != nil {
		return StepResult{Type: t}, err
	}

	oc := m.snapshot(newOperationID(t), unitID)
	log = log.With(zap.String("operation_id", oc.OperationID))
	m.recordEvent(oc.OperationID, t, EventStarted)

	res := m.execute(ctx, op, oc)
	if !res.Success {
		m.recordEvent(oc.OperationID, t, EventFailed)
		log.Warn("step failed", zap.Error(res.Err))
		return StepResult{OperationID: oc.OperationID, Type: t}, res.Err
	}

	entry := LedgerEntry{OperationID: oc.OperationID, Type: t}
	if res.Rollback != nil && res.Outcome.Mutated() {
		rb := *res.Rollback
		rb.Type = t
		entry.Rollback = &rb
	}
	m.mu.Lock()
	m.ledger = append(m.ledger, entry)
	m.mu.Unlock()
	m.recordEvent(oc.OperationID, t, EventSucceeded)

	log.Debug("step succeeded", zap.String("outcome", string(res.Outcome)), zap.String("record_id", res.RecordID))

	out := StepResult{
		OperationID: oc.OperationID,
		Type:        t,
		Outcome:     res.Outcome,
		RecordID:    res.RecordID,
		UnitID:      unitID,
	}
	if res.Data != nil {
		out.Data = res.Data
	}
	return out, nil
}

// execute runs Validate then Execute, converting panics into failures.
func (m *TransactionManager) execute(ctx context.Context, op Operation, oc *OperationContext) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{OperationID: oc.OperationID, Err: panicError(op.Type(), r)}
		}
	}()

	if err := op.Validate(ctx, oc); err != nil {
		return Result{OperationID: oc.OperationID, Err: err}
	}
	res = op.Execute(ctx, oc)
	res.OperationID = oc.OperationID
	if !res.Success && res.Err == nil {
		res.Err = StorageFailed(op.Type(), fmt.Errorf("operation reported failure"))
	}
	if !res.Success {
		res.Rollback = nil
	}
	return res
}

// snapshot builds a fresh OperationContext from the current ledger.
func (m *TransactionManager) snapshot(operationID, unitID string) *OperationContext {
	m.mu.RLock()
	defer m.mu.RUnlock()

	oc := &OperationContext{
		ActorID:              m.actorID,
		Input:                m.input,
		SagaID:               m.sagaID,
		OperationID:          operationID,
		UnitID:               unitID,
		ExecutedOperationIDs: make([]string, 0, len(m.ledger)),
		RollbackData:         make(map[string]RollbackInfo),
	}
	for _, e := range m.ledger {
		oc.ExecutedOperationIDs = append(oc.ExecutedOperationIDs, e.OperationID)
		if e.Rollback != nil {
			rb := *e.Rollback
			if rb.Previous != nil {
				prev := make(map[string]any, len(rb.Previous))
				for k, v := range rb.Previous {
					prev[k] = v
				}
				rb.Previous = prev
			}
			oc.RollbackData[e.OperationID] = rb
		}
	}
	return oc
}

// Rollback compensates every recorded step in reverse order. A failing
// compensation is logged and the sweep continues. Afterwards the ledger is
// cleared and the manager is terminal.
//
// Rollback is a no-op when the manager is already terminal. It is also a
// no-op when nothing was executed: the manager stays active in that case,
// so a caller that rolls back before the first step may still run steps.
// Only a rollback that compensated at least one entry locks the manager.
func (m *TransactionManager) Rollback(ctx context.Context) {
	m.call.Lock()
	defer m.call.Unlock()

	m.mu.RLock()
	state := m.state
	entries := append([]LedgerEntry(nil), m.ledger...)
	m.mu.RUnlock()

	if state.Terminal() {
		m.logger.Warn("rollback ignored: transaction is terminal", zap.Stringer("state", state))
		return
	}
	if len(entries) == 0 {
		m.logger.Debug("rollback: nothing to compensate")
		return
	}

	m.logger.Info("rolling back", zap.Int("operations", len(entries)))
	failed := 0
	for i := len(entries) - 1; i >= 0; i-- {
		if !m.compensate(ctx, entries[i]) {
			failed++
		}
	}

	m.mu.Lock()
	m.ledger = nil
	m.state = StateRolledBack
	m.mu.Unlock()

	m.logger.Info("rollback finished", zap.Int("operations", len(entries)), zap.Int("failed", failed))
}

// compensate undoes one ledger entry and reports whether it ran cleanly.
func (m *TransactionManager) compensate(ctx context.Context, entry LedgerEntry) (ok bool) {
	if entry.Rollback == nil {
		return true
	}
	log := m.logger.With(zap.Stringer("operation", entry.Type), zap.String("operation_id", entry.OperationID))

	op, err := m.registry.Get(entry.Type)
	if err != nil {
		log.Error("compensation skipped", zap.Error(CompensationFailed(entry.Type, entry.OperationID, err)))
		return false
	}

	m.recordEvent(entry.OperationID, entry.Type, EventUndoStarted)
	defer func() {
		if r := recover(); r != nil {
			log.Error("compensation panicked", zap.Error(CompensationFailed(entry.Type, entry.OperationID, panicError(entry.Type, r))))
			ok = false
		}
		if ok {
			m.recordEvent(entry.OperationID, entry.Type, EventUndoFinished)
		} else {
			m.recordEvent(entry.OperationID, entry.Type, EventUndoFailed)
		}
	}()

	op.Rollback(ctx, m.snapshot(entry.OperationID, ""), *entry.Rollback)
	return true
}

func (m *TransactionManager) recordEvent(operationID string, t OperationType, event JournalEventType) {
	if err := m.journal.Record(operationID, t, event); err != nil {
		m.logger.Error("journal rejected event", zap.Error(err))
	}
}

// MarkCompleted marks a successful onboarding. Further steps and Rollback
// are refused.
func (m *TransactionManager) MarkCompleted() error {
	m.call.Lock()
	defer m.call.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Terminal() {
		return ErrAlreadyCompleted
	}
	m.state = StateCompleted
	m.logger.Info("transaction completed", zap.Int("operations", len(m.ledger)))
	return nil
}

// TransactionID returns the saga id.
func (m *TransactionManager) TransactionID() string {
	return m.sagaID
}

// State returns the lifecycle state.
func (m *TransactionManager) State() ManagerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ExecutedOperations returns a copy of the ledger, oldest first.
func (m *TransactionManager) ExecutedOperations() []LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LedgerEntry(nil), m.ledger...)
}

// Summary returns a diagnostic view of the manager.
func (m *TransactionManager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		SagaID:               m.sagaID,
		ActorID:              m.actorID,
		ExecutedOperationIDs: make([]string, 0, len(m.ledger)),
		Completed:            m.state.Terminal(),
		State:                m.state,
	}
	for _, e := range m.ledger {
		s.ExecutedOperationIDs = append(s.ExecutedOperationIDs, e.OperationID)
		if e.Rollback != nil {
			s.HasRollbackData = true
		}
	}
	return s
}

// Journal returns the saga's event journal.
func (m *TransactionManager) Journal() *Journal {
	return m.journal
}
