// Package stats computes cross-collection figures from loaded records.
// Every function is pure: callers pass the records in.
package stats

import (
	"math"
	"time"

	"github.com/smartm-app/smartm/internal/model"
)

const day = 24 * time.Hour

// TotalOperability returns the rounded percentage of operational equipment.
// An empty collection is 100% operable.
func TotalOperability(equipment []model.Equipment) int {
	if len(equipment) == 0 {
		return 100
	}
	operational := 0
	for _, e := range equipment {
		if e.Status == model.StatusOperational {
			operational++
		}
	}
	return int(math.Round(float64(operational) / float64(len(equipment)) * 100))
}

// StatusCounts tallies equipment by status.
func StatusCounts(equipment []model.Equipment) map[model.EquipmentStatus]int {
	out := make(map[model.EquipmentStatus]int, 3)
	for _, e := range equipment {
		out[e.Status]++
	}
	return out
}

// SpanDays returns the number of calendar days covered by an absence,
// counting both endpoints. Reversed ranges count the same as forward ones.
// ok is false when either date cannot be parsed.
func SpanDays(a model.PersonnelAbsence) (days int, ok bool) {
	start, err := model.ParseDateWall(a.StartDate)
	if err != nil {
		return 0, false
	}
	end, err := model.ParseDateWall(a.EndDate)
	if err != nil {
		return 0, false
	}
	diff := end.Sub(start)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(float64(diff)/float64(day))) + 1, true
}

// AbsenceDays sums SpanDays over every absence of personnelID. Overlapping
// absences are each counted in full.
func AbsenceDays(personnelID int, absences []model.PersonnelAbsence) int {
	total := 0
	for _, a := range absences {
		if a.PersonnelID != personnelID {
			continue
		}
		if d, ok := SpanDays(a); ok {
			total += d
		}
	}
	return total
}

// AnnualLeaveDays sums SpanDays over the annual-leave absences of
// personnelID that start in year.
func AnnualLeaveDays(personnelID, year int, absences []model.PersonnelAbsence) int {
	total := 0
	for _, a := range absences {
		if a.PersonnelID != personnelID || a.Reason != model.ReasonAnnualLeave {
			continue
		}
		start, err := model.ParseDate(a.StartDate)
		if err != nil || start.Year() != year {
			continue
		}
		if d, ok := SpanDays(a); ok {
			total += d
		}
	}
	return total
}

// RefreshAbsenceDays returns personnel with AbsenceDays recomputed from
// absences.
func RefreshAbsenceDays(personnel []model.Personnel, absences []model.PersonnelAbsence) []model.Personnel {
	out := make([]model.Personnel, len(personnel))
	for i, p := range personnel {
		p.AbsenceDays = AbsenceDays(p.ID, absences)
		out[i] = p
	}
	return out
}

// ActiveAbsences returns absences not yet marked as rejoined.
func ActiveAbsences(absences []model.PersonnelAbsence) []model.PersonnelAbsence {
	out := make([]model.PersonnelAbsence, 0, len(absences))
	for _, a := range absences {
		if a.Active() {
			out = append(out, a)
		}
	}
	return out
}
