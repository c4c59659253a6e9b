package onboard

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fortressi/onboard/identity"
	"github.com/fortressi/onboard/memstore"
	"github.com/fortressi/onboard/storage"
)

const testActor = "u1"

// testEnv bundles the collaborators used by most tests.
type testEnv struct {
	store    *memstore.Store
	sessions *identity.Sessions
	logs     *observer.ObservedLogs
	deps     Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	store := memstore.NewDefault()
	sessions := identity.NewSessions()
	sessions.Grant(testActor, time.Hour)
	sessions.SetCurrent(testActor)
	return &testEnv{
		store:    store,
		sessions: sessions,
		logs:     logs,
		deps: Deps{
			Storage:  store,
			Identity: sessions,
			Logger:   zap.New(core),
		},
	}
}

func scenarioPayload() Payload {
	return Payload{
		OwnerName:        "Ana",
		UnitName:         "Clinic A",
		SelfProfessional: true,
		ServiceName:      "Consulta",
		Price:            "100.00",
		DurationMinutes:  30,
	}
}

func (e *testEnv) manager(p Payload, opts ...Option) *TransactionManager {
	return NewManager(testActor, p, e.deps, opts...)
}

func (e *testEnv) opContext(p Payload, unitID string) *OperationContext {
	return &OperationContext{
		ActorID:      testActor,
		Input:        p,
		SagaID:       "saga-test",
		OperationID:  "op-test",
		UnitID:       unitID,
		RollbackData: map[string]RollbackInfo{},
	}
}

func (e *testEnv) find(t *testing.T, coll string, f storage.Filter) storage.Document {
	t.Helper()
	doc, err := e.store.Collection(coll).FindOne(context.Background(), f)
	if err != nil {
		t.Fatalf("find %s: %v", coll, err)
	}
	return doc
}

// entityCounts returns the number of records per onboarding collection.
func (e *testEnv) entityCounts() map[string]int {
	out := make(map[string]int)
	for _, c := range []string{
		storage.Profiles, storage.RoleAssignments, storage.OrgUnits,
		storage.Professionals, storage.UnitProfessionals, storage.ServiceTemplates,
	} {
		out[c] = e.store.Count(c)
	}
	return out
}

func emptyCounts() map[string]int {
	return map[string]int{
		storage.Profiles:          0,
		storage.RoleAssignments:   0,
		storage.OrgUnits:          0,
		storage.Professionals:     0,
		storage.UnitProfessionals: 0,
		storage.ServiceTemplates:  0,
	}
}
