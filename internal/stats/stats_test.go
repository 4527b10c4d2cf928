package stats

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartm-app/smartm/internal/model"
)

func TestTotalOperability(t *testing.T) {
	tests := []struct {
		name     string
		statuses []model.EquipmentStatus
		want     int
	}{
		{"empty is fully operable", nil, 100},
		{"one of three", []model.EquipmentStatus{model.StatusOperational, model.StatusMaintenance, model.StatusOutOfService}, 33},
		{"two of three rounds up", []model.EquipmentStatus{model.StatusOperational, model.StatusOperational, model.StatusMaintenance}, 67},
		{"none", []model.EquipmentStatus{model.StatusMaintenance}, 0},
		{"all", []model.EquipmentStatus{model.StatusOperational, model.StatusOperational}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var eq []model.Equipment
			for _, s := range tt.statuses {
				eq = append(eq, model.Equipment{Status: s})
			}
			assert.Equal(t, tt.want, TotalOperability(eq))
		})
	}
}

func TestStatusCounts(t *testing.T) {
	counts := StatusCounts([]model.Equipment{
		{Status: model.StatusOperational}, {Status: model.StatusMaintenance}, {Status: model.StatusMaintenance},
	})
	assert.Equal(t, 1, counts[model.StatusOperational])
	assert.Equal(t, 2, counts[model.StatusMaintenance])
	assert.Zero(t, counts[model.StatusOutOfService])
}

func TestAbsenceDays(t *testing.T) {
	absences := []model.PersonnelAbsence{
		{PersonnelID: 1, StartDate: "2024-01-01", EndDate: "2024-01-05"},
		{PersonnelID: 1, StartDate: "2024-01-03", EndDate: "2024-01-04"},
		{PersonnelID: 2, StartDate: "2024-02-10", EndDate: "2024-02-10"},
		{PersonnelID: 2, StartDate: "garbage", EndDate: "2024-02-10"},
	}

	// Overlapping ranges are both counted.
	assert.Equal(t, 7, AbsenceDays(1, absences))
	assert.Equal(t, 1, AbsenceDays(2, absences))
	assert.Zero(t, AbsenceDays(3, absences))
}

func TestSpanDays(t *testing.T) {
	d, ok := SpanDays(model.PersonnelAbsence{StartDate: "2024-01-01", EndDate: "2024-01-05"})
	require.True(t, ok)
	assert.Equal(t, 5, d)

	d, ok = SpanDays(model.PersonnelAbsence{StartDate: "2024-03-10", EndDate: "2024-03-10"})
	require.True(t, ok)
	assert.Equal(t, 1, d)

	d, ok = SpanDays(model.PersonnelAbsence{StartDate: "2024-01-05", EndDate: "2024-01-01"})
	require.True(t, ok)
	assert.Equal(t, 5, d)

	_, ok = SpanDays(model.PersonnelAbsence{StartDate: "2024-01-05", EndDate: "soon"})
	assert.False(t, ok)
}

func TestSpanDays_AcrossDaylightSaving(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	saved := time.Local
	time.Local = paris
	t.Cleanup(func() { time.Local = saved })

	tests := []struct {
		start, end string
		want       int
	}{
		{"2024-10-26", "2024-10-28", 3}, // clocks go back on the 27th
		{"2024-03-30", "2024-04-01", 3}, // clocks go forward on the 31st
		{"2024-01-01", "2024-01-05", 5},
	}
	for _, tt := range tests {
		d, ok := SpanDays(model.PersonnelAbsence{StartDate: tt.start, EndDate: tt.end})
		require.True(t, ok)
		assert.Equal(t, tt.want, d, "%s..%s", tt.start, tt.end)
	}
	assert.Equal(t, 3, AbsenceDays(1, []model.PersonnelAbsence{
		{PersonnelID: 1, StartDate: "2024-10-26", EndDate: "2024-10-28"},
	}))
}

func TestAnnualLeaveDays(t *testing.T) {
	absences := []model.PersonnelAbsence{
		{PersonnelID: 1, Reason: model.ReasonAnnualLeave, StartDate: "2024-07-01", EndDate: "2024-07-10"},
		{PersonnelID: 1, Reason: model.ReasonAnnualLeave, StartDate: "2023-12-30", EndDate: "2024-01-02"},
		{PersonnelID: 1, Reason: "Maladie", StartDate: "2024-03-01", EndDate: "2024-03-02"},
		{PersonnelID: 2, Reason: model.ReasonAnnualLeave, StartDate: "2024-07-01", EndDate: "2024-07-01"},
	}
	assert.Equal(t, 10, AnnualLeaveDays(1, 2024, absences))
	assert.Equal(t, 4, AnnualLeaveDays(1, 2023, absences))
	assert.Equal(t, 1, AnnualLeaveDays(2, 2024, absences))
}

func TestRefreshAbsenceDays(t *testing.T) {
	personnel := []model.Personnel{{ID: 1, Name: "Lea"}, {ID: 2, Name: "Sam", AbsenceDays: 9}}
	absences := []model.PersonnelAbsence{{PersonnelID: 1, StartDate: "2024-01-01", EndDate: "2024-01-02"}}

	got := RefreshAbsenceDays(personnel, absences)
	assert.Equal(t, 2, got[0].AbsenceDays)
	assert.Equal(t, 0, got[1].AbsenceDays)
	assert.Equal(t, 9, personnel[1].AbsenceDays)
}

func TestActiveAbsences(t *testing.T) {
	got := ActiveAbsences([]model.PersonnelAbsence{{ID: 1}, {ID: 2, Rejoined: true}})
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ID)
}

func TestFinanceStats(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.Local)
	items := []model.Consumption{
		{Amount: 100, Date: "2024-03-01"},
		{Amount: 50, Date: "2024-03-20"},
		{Amount: 200, Date: "2024-02-10"},
		{Amount: 30, Date: "2023-03-05"},
	}

	f := FinanceStats(items, now)
	assert.InDelta(t, 380, f.Total, 1e-9)
	assert.InDelta(t, 150, f.CurrentMonth, 1e-9)
	assert.InDelta(t, 200, f.PreviousMonth, 1e-9)
	assert.InDelta(t, 95, f.Average, 1e-9)
	assert.InDelta(t, 200, f.Max, 1e-9)
	assert.InDelta(t, -25, f.Trend, 1e-9)
}

func TestFinanceStats_JanuaryLooksAtDecember(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)
	f := FinanceStats([]model.Consumption{
		{Amount: 10, Date: "2023-12-31"},
		{Amount: 20, Date: "2024-01-02"},
	}, now)
	assert.InDelta(t, 10, f.PreviousMonth, 1e-9)
	assert.InDelta(t, 100, f.Trend, 1e-9)
}

func TestFinanceStats_Empty(t *testing.T) {
	f := FinanceStats(nil, time.Now())
	assert.Zero(t, f.Total)
	assert.Zero(t, f.Average)
	assert.Zero(t, f.Max)
	assert.Zero(t, f.Trend)
}

func TestInMonth(t *testing.T) {
	items := []model.Consumption{{ID: 1, Date: "2024-03-01"}, {ID: 2, Date: "2024-04-01"}}

	got, err := InMonth(items, "2024-03")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ID)

	got, err = InMonth(items, "")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = InMonth(items, "March")
	assert.Error(t, err)
}

func TestByCategory(t *testing.T) {
	got := ByCategory([]model.Consumption{
		{Amount: 1, Category: "fuel"}, {Amount: 2, Category: "fuel"}, {Amount: 4},
	})
	assert.InDelta(t, 3, got["fuel"], 1e-9)
	assert.InDelta(t, 4, got[""], 1e-9)
}

func TestFailures(t *testing.T) {
	s := Failures(1, []model.EquipmentFailure{
		{EquipmentID: 1, FailureType: "electrical", Component: "board", FailureDate: "2024-02-01"},
		{EquipmentID: 1, FailureType: "electrical", Component: "fan", FailureDate: "2024-02-15"},
		{EquipmentID: 2, FailureType: "mechanical", Component: "fan", FailureDate: "2024-02-15"},
	})
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.ByType["electrical"])
	assert.Equal(t, 1, s.ByComponent["fan"])
	assert.Equal(t, 2, s.ByDate["2/2024"])
}
