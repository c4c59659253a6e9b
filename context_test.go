package onboard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payloadYAML = `
owner_name: Ana
unit_name: Clinic A
self_professional: true
professional_registry: CRM-1
service_name: Consulta
price: "100,00"
duration_minutes: 30
`

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload([]byte(payloadYAML))
	require.NoError(t, err)
	assert.Equal(t, Payload{
		OwnerName:            "Ana",
		UnitName:             "Clinic A",
		SelfProfessional:     true,
		ProfessionalRegistry: "CRM-1",
		ServiceName:          "Consulta",
		Price:                "100,00",
		DurationMinutes:      30,
	}, p)

	_, err = ParsePayload([]byte("owner_name: [unterminated"))
	assert.Error(t, err)
}

func TestParsePayloadAcceptsJSON(t *testing.T) {
	p, err := ParsePayload([]byte(`{"owner_name": "Ana", "price": "12.5", "duration_minutes": 15}`))
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.OwnerName)
	assert.Equal(t, 15, p.DurationMinutes)
}

func TestLoadPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(payloadYAML), 0o600))

	p, err := LoadPayload(path)
	require.NoError(t, err)
	assert.Equal(t, "Clinic A", p.UnitName)

	_, err = LoadPayload(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPriceValue(t *testing.T) {
	tests := []struct {
		price   string
		want    string
		wantErr bool
	}{
		{"100.00", "100.00", false},
		{"100,50", "100.50", false},
		{" 7 ", "7.00", false},
		{"0", "0.00", false},
		{"0.001", "0.00", false},
		{"0.005", "0.01", false},
		{"19.999", "20.00", false},
		{"", "", true},
		{"12a", "", true},
		{"Inf", "", true},
		{"NaN", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			got, err := Payload{Price: tt.price}.PriceValue()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}
