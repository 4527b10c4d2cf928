// Package report gathers the data of a SmartM activity report and lays it
// out as a spreadsheet.
//
// The report only reads. It sees the application through Source, which the
// service layer implements, so it never touches storage directly.
package report

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/stats"
)

// Domain is a report section the user can select.
type Domain string

const (
	DomainEquipment Domain = "equipment"
	DomainPersonnel Domain = "personnel"
	DomainFinance   Domain = "finance"
	DomainTasks     Domain = "tasks"
)

// Domains lists every domain in report order.
func Domains() []Domain {
	return []Domain{DomainEquipment, DomainPersonnel, DomainFinance, DomainTasks}
}

// ParseDomain validates a domain name.
func ParseDomain(s string) (Domain, error) {
	for _, d := range Domains() {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown report domain %q", s)
}

// Source is the read-only view of the application a report is built from.
type Source interface {
	Equipment(ctx context.Context) []model.Equipment
	Failures(ctx context.Context) []model.EquipmentFailure
	Personnel(ctx context.Context) []model.Personnel
	Absences(ctx context.Context) []model.PersonnelAbsence
	Instances(ctx context.Context) []model.Instance
	Consumptions(ctx context.Context) []model.Consumption
	TotalPersonnel(ctx context.Context) int
}

// Options selects what goes into a report.
type Options struct {
	// Domains to include. Empty means all of them.
	Domains []Domain
	// Month filters the finance section, as "YYYY-MM". Empty means the
	// month of Now.
	Month string
	// Now defaults to time.Now.
	Now time.Time
}

// PersonnelRow is one person with derived absence figures.
type PersonnelRow struct {
	model.Personnel
	// AnnualLeaveDays counts annual leave within the report year.
	AnnualLeaveDays int
}

// Data is everything a report layout needs.
type Data struct {
	GeneratedAt time.Time
	Month       string
	Domains     []Domain

	Operability    int
	StatusCounts   map[model.EquipmentStatus]int
	Equipment      []model.Equipment
	Failures       []model.EquipmentFailure
	FailureStats   map[int]stats.FailureStatistics
	TotalPersonnel int
	Present        int
	Personnel      []PersonnelRow
	ActiveAbsences []model.PersonnelAbsence

	Consumptions []model.Consumption
	MonthTotal   float64
	ByCategory   map[string]float64
	Finance      stats.Finance

	Instances []model.Instance
	Pending   int
	Completed int
}

// Includes reports whether d was selected.
func (d *Data) Includes(domain Domain) bool {
	return slices.Contains(d.Domains, domain)
}

// FileName is the suggested file name for the report.
func (d *Data) FileName(ext string) string {
	return fmt.Sprintf("SmartM_Report_%s.%s", strings.Replace(d.Month, "-", "_", 1), ext)
}

// Collect reads src and computes the report data.
func Collect(ctx context.Context, src Source, opts Options) (*Data, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	month := opts.Month
	if month == "" {
		month = now.Format("2006-01")
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", month, err)
	}
	domains := opts.Domains
	if len(domains) == 0 {
		domains = Domains()
	}

	d := &Data{GeneratedAt: now, Month: month, Domains: domains}

	if d.Includes(DomainEquipment) {
		d.Equipment = src.Equipment(ctx)
		d.Operability = stats.TotalOperability(d.Equipment)
		d.StatusCounts = stats.StatusCounts(d.Equipment)
		d.Failures = src.Failures(ctx)
		d.FailureStats = make(map[int]stats.FailureStatistics, len(d.Equipment))
		for _, e := range d.Equipment {
			d.FailureStats[e.ID] = stats.Failures(e.ID, d.Failures)
		}
	}

	if d.Includes(DomainPersonnel) {
		absences := src.Absences(ctx)
		d.ActiveAbsences = stats.ActiveAbsences(absences)
		d.TotalPersonnel = src.TotalPersonnel(ctx)
		d.Present = max(d.TotalPersonnel-len(d.ActiveAbsences), 0)
		for _, p := range stats.RefreshAbsenceDays(src.Personnel(ctx), absences) {
			d.Personnel = append(d.Personnel, PersonnelRow{
				Personnel:       p,
				AnnualLeaveDays: stats.AnnualLeaveDays(p.ID, now.Year(), absences),
			})
		}
	}

	if d.Includes(DomainFinance) {
		all := src.Consumptions(ctx)
		inMonth, err := stats.InMonth(all, month)
		if err != nil {
			return nil, err
		}
		d.Consumptions = inMonth
		for _, c := range inMonth {
			d.MonthTotal += c.Amount
		}
		d.ByCategory = stats.ByCategory(inMonth)
		d.Finance = stats.FinanceStats(all, now)
	}

	if d.Includes(DomainTasks) {
		d.Instances = src.Instances(ctx)
		for _, it := range d.Instances {
			if it.Status == model.InstanceCompleted {
				d.Completed++
			} else {
				d.Pending++
			}
		}
	}

	return d, nil
}
