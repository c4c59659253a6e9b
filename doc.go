// Package onboard provisions a new tenant's initial resource graph as a
// saga.
//
// The backing store only offers single-entity atomicity, so onboarding is
// run as a sequence of local operations, each paired with a compensating
// action. A TransactionManager drives one onboarding attempt for one actor:
// the caller invokes the step methods in dependency order, and the manager
// records every successful step in an append-only ledger. If a step fails
// the caller may call Rollback, which replays the recorded compensations in
// reverse order and leaves the manager terminal.
//
// Overview
//
//  1. Wire the collaborators into a Deps value: a storage.Client (see the
//     memstore and badgerstore packages), an identity.Accessor and a zap
//     logger.
//  2. Build a manager with NewManager for the actor and the wizard payload.
//  3. Either call the step methods yourself (CreateProfile, CreateRole,
//     CreateOrgUnit, BindRoleToUnit, ...) or hand the manager to Onboard,
//     which walks DefaultPlan and rolls back on the first failure.
//  4. Call MarkCompleted once the wizard has finished.
//
// Steps are idempotent: re-running a step whose entity already exists
// succeeds with OutcomeExists, and a unique-constraint race with another
// attempt succeeds with OutcomeDuplicate. Neither records compensation data.
package onboard
