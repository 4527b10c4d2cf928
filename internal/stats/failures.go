package stats

import (
	"fmt"

	"github.com/smartm-app/smartm/internal/model"
)

// FailureStatistics groups the failures of one equipment item.
type FailureStatistics struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"byType"`
	ByComponent map[string]int `json:"byComponent"`
	// ByDate is keyed by "M/YYYY".
	ByDate map[string]int `json:"byDate"`
}

// Failures computes statistics over the failures of equipmentID.
func Failures(equipmentID int, failures []model.EquipmentFailure) FailureStatistics {
	s := FailureStatistics{
		ByType:      map[string]int{},
		ByComponent: map[string]int{},
		ByDate:      map[string]int{},
	}
	for _, f := range failures {
		if f.EquipmentID != equipmentID {
			continue
		}
		s.Total++
		s.ByType[f.FailureType]++
		s.ByComponent[f.Component]++
		if d, err := model.ParseDate(f.FailureDate); err == nil {
			s.ByDate[fmt.Sprintf("%d/%d", int(d.Month()), d.Year())]++
		}
	}
	return s
}
