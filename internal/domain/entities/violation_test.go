package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Severity
		wantErr bool
	}{
		{name: "high", input: "high", want: SeverityHigh},
		{name: "critical alias", input: "critical", want: SeverityHigh},
		{name: "warning", input: "warning", want: SeverityWarning},
		{name: "info alias", input: "INFO", want: SeverityAdvisory},
		{name: "unknown", input: "fatal", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidationReport_Blocking(t *testing.T) {
	r := &ValidationReport{ChapterIndex: 4}
	r.Add(Violation{Category: CategoryPlotLogic, Severity: SeverityAdvisory, Detail: "villain lacks motive"})
	r.Add(Violation{Category: CategoryCultivation, Severity: SeverityWarning, Detail: "fast breakthrough"})

	assert.False(t, r.Blocking(SeverityHigh))
	assert.True(t, r.Blocking(SeverityWarning))

	r.Add(Violation{Category: CategoryFactionName, Severity: SeverityHigh, Detail: "faction renamed"})
	assert.True(t, r.Blocking(SeverityHigh))
	assert.Len(t, r.BlockingViolations(SeverityHigh), 1)
	assert.Len(t, r.BlockingViolations(SeverityWarning), 2)
}

func TestValidationReport_Summary_SortsBySeverity(t *testing.T) {
	r := &ValidationReport{}
	r.Add(Violation{Severity: SeverityAdvisory, Detail: "a"})
	r.Add(Violation{Severity: SeverityHigh, Detail: "b"})
	r.Add(Violation{Severity: SeverityWarning, Detail: "c"})
	r.Add(Violation{Severity: SeverityHigh, Detail: "d"})

	got := r.Summary()
	require.Len(t, got, 4)
	assert.Equal(t, "b", got[0].Detail)
	assert.Equal(t, "d", got[1].Detail) // stable within severity
	assert.Equal(t, "c", got[2].Detail)
	assert.Equal(t, "a", got[3].Detail)

	// Summary must not reorder the report itself.
	assert.Equal(t, "a", r.Violations[0].Detail)
}

func TestViolation_ConstraintCallout(t *testing.T) {
	v := Violation{
		Category: CategoryFactionName,
		Severity: SeverityHigh,
		Detail:   `faction "Azure Sword Sect" appeared as "Azure Blade Sect"`,
	}
	got := v.ConstraintCallout()
	assert.Contains(t, got, "faction name constraint")
	assert.Contains(t, got, "Azure Blade Sect")
	assert.Contains(t, got, "Do not repeat this.")
}
