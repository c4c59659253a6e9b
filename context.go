package onboard

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Payload is the input collected by the onboarding wizard. It is read-only
// for the duration of an attempt.
type Payload struct {
	OwnerName        string `json:"owner_name" yaml:"owner_name"`
	UnitName         string `json:"unit_name" yaml:"unit_name"`
	SelfProfessional bool   `json:"self_professional" yaml:"self_professional"`
	// ProfessionalRegistry is the optional licence number recorded on the
	// professional record.
	ProfessionalRegistry string `json:"professional_registry,omitempty" yaml:"professional_registry,omitempty"`
	ServiceName          string `json:"service_name" yaml:"service_name"`
	// Price is a decimal string; both "100.00" and "100,00" are accepted.
	Price           string `json:"price" yaml:"price"`
	DurationMinutes int    `json:"duration_minutes" yaml:"duration_minutes"`
}

// ParsePayload decodes a YAML (or JSON) payload document.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode payload: %w", err)
	}
	return p, nil
}

// LoadPayload reads a payload file.
func LoadPayload(path string) (Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to read payload file: %w", err)
	}
	return ParsePayload(data)
}

// PriceValue parses Price and rounds it to cents, half away from zero.
func (p Payload) PriceValue() (decimal.Decimal, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(p.Price), ",", ".")
	if raw == "" {
		return decimal.Zero, fmt.Errorf("price is empty")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q is not a decimal number", p.Price)
	}
	return v.Round(2), nil
}

// OperationContext is the snapshot handed to every Operation call. The
// manager builds a fresh one per call; operations must treat it as
// read-only.
type OperationContext struct {
	ActorID string
	Input   Payload
	SagaID  string
	// OperationID is the id allocated for this call (or, during rollback,
	// the id of the step being compensated).
	OperationID string
	// UnitID is the unit parameter of the unit-scoped steps.
	UnitID string

	// ExecutedOperationIDs lists the steps recorded so far, oldest first.
	ExecutedOperationIDs []string
	// RollbackData maps executed operation ids to their compensation data.
	RollbackData map[string]RollbackInfo
}
