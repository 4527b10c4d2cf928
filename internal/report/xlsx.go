package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/smartm-app/smartm/internal/model"
)

const summarySheet = "Résumé"

var sheetNames = map[Domain]string{
	DomainEquipment: "Équipements",
	DomainPersonnel: "Personnel",
	DomainFinance:   "Finances",
	DomainTasks:     "Tâches",
}

// WriteXLSX lays d out as a workbook: a summary sheet followed by one sheet
// per selected domain.
func WriteXLSX(d *Data, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if err := writeRows(f, summarySheet, bold, []any{"Rapport SmartM", d.GeneratedAt.Format("02/01/2006 15:04")}, summaryRows(d)); err != nil {
		return err
	}

	for _, domain := range Domains() {
		if !d.Includes(domain) {
			continue
		}
		sheet := sheetNames[domain]
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
		}
		header, rows := domainRows(d, domain)
		if err := writeRows(f, sheet, bold, header, rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(max(len(header), 1), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return f.SetColWidth(sheet, "A", "A", 28)
}

func summaryRows(d *Data) [][]any {
	rows := [][]any{{"Mois", d.Month}}
	if d.Includes(DomainEquipment) {
		rows = append(rows,
			[]any{"Opérabilité totale (%)", d.Operability},
			[]any{"Équipements", len(d.Equipment)},
			[]any{"Pannes enregistrées", len(d.Failures)},
		)
	}
	if d.Includes(DomainPersonnel) {
		rows = append(rows,
			[]any{"Effectif total", d.TotalPersonnel},
			[]any{"Présents", d.Present},
			[]any{"Absents", len(d.ActiveAbsences)},
		)
	}
	if d.Includes(DomainFinance) {
		rows = append(rows,
			[]any{"Dépenses du mois (DHS)", d.MonthTotal},
			[]any{"Dépenses totales (DHS)", d.Finance.Total},
			[]any{"Tendance mensuelle (%)", d.Finance.Trend},
		)
	}
	if d.Includes(DomainTasks) {
		rows = append(rows,
			[]any{"Tâches en cours", d.Pending},
			[]any{"Tâches terminées", d.Completed},
		)
	}
	return rows
}

func domainRows(d *Data, domain Domain) ([]any, [][]any) {
	var rows [][]any
	switch domain {
	case DomainEquipment:
		for _, e := range d.Equipment {
			rows = append(rows, []any{e.ID, e.Name, e.Service, statusLabel(e.Status), e.Sensitivity, d.FailureStats[e.ID].Total})
		}
		return []any{"ID", "Nom", "Service", "Statut", "Sensibilité", "Pannes"}, rows

	case DomainPersonnel:
		for _, p := range d.Personnel {
			rows = append(rows, []any{p.ID, p.Name, p.AbsenceDays, p.AnnualLeaveDays})
		}
		rows = append(rows, []any{})
		rows = append(rows, []any{"Absences en cours", "Motif", "Début", "Fin"})
		for _, a := range d.ActiveAbsences {
			rows = append(rows, []any{a.Label, a.Reason, a.StartDate, a.EndDate})
		}
		return []any{"ID", "Nom", "Jours d'absence", "Congés annuels"}, rows

	case DomainFinance:
		for _, c := range d.Consumptions {
			rows = append(rows, []any{c.Date, c.InvoiceID, c.Description, c.Category, c.Amount})
		}
		rows = append(rows, []any{})
		cats := make([]string, 0, len(d.ByCategory))
		for c := range d.ByCategory {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			label := c
			if label == "" {
				label = "Sans catégorie"
			}
			rows = append(rows, []any{"Catégorie", label, "", "", d.ByCategory[c]})
		}
		return []any{"Date", "Facture", "Description", "Catégorie", "Montant (DHS)"}, rows

	case DomainTasks:
		for _, it := range d.Instances {
			rows = append(rows, []any{
				it.ID, it.Title, it.Category.Label("fr"), it.Assignee, it.DueDate, it.Status.Label("fr"),
			})
		}
		return []any{"ID", "Titre", "Catégorie", "Responsable", "Échéance", "Statut"}, rows
	}
	return nil, nil
}

func statusLabel(s model.EquipmentStatus) string {
	switch s {
	case model.StatusOperational:
		return "Opérationnel"
	case model.StatusMaintenance:
		return "En maintenance"
	case model.StatusOutOfService:
		return "Hors service"
	default:
		return string(s)
	}
}
