package onboard

import (
	"context"
	"fmt"
)

// StepReport is the outcome of one step run by Onboard.
type StepReport struct {
	Type        OperationType
	OperationID string
	Outcome     Outcome
	RecordID    string
}

// Report summarizes an Onboard run.
type Report struct {
	SagaID     string
	Steps      []StepReport
	UnitID     string
	RolledBack bool
}

// Onboard drives m through plan the way the wizard does: steps run in plan
// order, the unit id produced by create_org_unit feeds the unit-scoped
// steps, and the first failure rolls everything back. On success the
// manager is marked completed.
func Onboard(ctx context.Context, m *TransactionManager, plan *Plan) (Report, error) {
	if plan == nil {
		plan = DefaultPlan()
	}
	report := Report{SagaID: m.TransactionID()}

	order, err := plan.Order()
	if err != nil {
		return report, err
	}

	for _, t := range order {
		res, err := runPlannedStep(ctx, m, t, report.UnitID)
		if err != nil {
			m.Rollback(ctx)
			report.RolledBack = m.State() == StateRolledBack
			return report, fmt.Errorf("onboarding failed at %s: %w", t, err)
		}
		if t == TypeCreateOrgUnit {
			report.UnitID = res.UnitID
		}
		report.Steps = append(report.Steps, StepReport{
			Type:        t,
			OperationID: res.OperationID,
			Outcome:     res.Outcome,
			RecordID:    res.RecordID,
		})
	}

	if err := m.MarkCompleted(); err != nil {
		return report, err
	}
	return report, nil
}

func runPlannedStep(ctx context.Context, m *TransactionManager, t OperationType, unitID string) (StepResult, error) {
	switch t {
	case TypeCreateOwnerProfile:
		return m.CreateProfile(ctx)
	case TypeAssignOwnerRole:
		return m.CreateRole(ctx)
	case TypeCreateOrgUnit:
		return m.CreateOrgUnit(ctx)
	case TypeBindRoleToUnit:
		return m.BindRoleToUnit(ctx, unitID)
	case TypeRegisterProfessional:
		return m.CreateProfessional(ctx)
	case TypeLinkProfessionalToUnit:
		return m.LinkProfessionalToUnit(ctx, unitID)
	case TypeCreateServiceTemplate:
		return m.CreateServiceTemplate(ctx)
	case TypeMarkOnboardingComplete:
		return m.MarkOnboardingComplete(ctx)
	default:
		return m.runStep(ctx, t, unitID)
	}
}
