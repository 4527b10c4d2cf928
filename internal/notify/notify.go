// Package notify raises the in-app notifications SmartM derives from its
// data: personnel about to return, tasks about to expire and a fleet whose
// operability fell below the alert threshold.
//
// Every check is idempotent. A returning absence is flagged once, a task is
// reminded at most once per calendar day, and the operability alert is
// latched until the fleet recovers.
package notify

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/logging"
	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/repo"
	"github.com/smartm-app/smartm/internal/stats"
	"github.com/smartm-app/smartm/internal/storage"
)

const (
	// LowOperabilityKey latches the operability alert.
	LowOperabilityKey = "low_operability_notification_sent"

	// ReturnWindow is how far ahead a returning absence is announced.
	ReturnWindow = 48 * time.Hour

	// ExpiryWindow is how far ahead a pending task is reminded.
	ExpiryWindow = 4 * 24 * time.Hour

	// DefaultThreshold is the operability percentage below which the alert
	// fires.
	DefaultThreshold = 50
)

// Checker runs the notification checks against a repository set.
type Checker struct {
	repos     *repo.Set
	store     *storage.Store
	threshold float64
	now       func() time.Time
	logger    *zap.Logger
}

// NewChecker returns a checker. store holds the operability latch.
func NewChecker(repos *repo.Set, store *storage.Store, threshold float64, logger *zap.Logger) *Checker {
	return &Checker{
		repos:     repos,
		store:     store,
		threshold: threshold,
		now:       time.Now,
		logger:    logging.OrNop(logger).Named("notify"),
	}
}

// SetClock overrides time.Now.
func (c *Checker) SetClock(now func() time.Time) {
	c.now = now
}

// Notify appends an unread notification dated now.
func (c *Checker) Notify(ctx context.Context, title, message string, typ model.NotificationType) (model.Notification, error) {
	n, err := c.repos.Notifications.Add(ctx, model.Notification{
		Title:   title,
		Message: message,
		Date:    c.now().Format(time.RFC3339),
		Type:    typ,
	})
	if err != nil {
		return n, fmt.Errorf("failed to add notification: %w", err)
	}
	c.logger.Info("notification added", zap.String("title", title), zap.String("type", string(typ)))
	return n, nil
}

// Unread returns the unread notifications, newest last.
func (c *Checker) Unread(ctx context.Context) []model.Notification {
	var out []model.Notification
	for _, n := range c.repos.Notifications.GetAll(ctx) {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// MarkRead marks one notification read.
func (c *Checker) MarkRead(ctx context.Context, id int) error {
	return c.repos.Notifications.Update(ctx, id, func(n *model.Notification) { n.Read = true })
}

// MarkAllRead marks every notification read and returns how many changed.
func (c *Checker) MarkAllRead(ctx context.Context) (int, error) {
	items, err := c.repos.Notifications.Load(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range items {
		if !items[i].Read {
			items[i].Read = true
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, c.repos.Notifications.SaveAll(ctx, items)
}

// CheckAll runs every check and returns the number of notifications
// created. A failing check does not stop the others.
func (c *Checker) CheckAll(ctx context.Context) (int, error) {
	total := 0
	var firstErr error
	for _, check := range []func(context.Context) (int, error){
		c.CheckPersonnelReturns,
		c.CheckTaskExpirations,
		c.CheckLowOperability,
	} {
		n, err := check(ctx)
		total += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return total, firstErr
}

// CheckPersonnelReturns announces active absences ending within the return
// window. Each absence is announced once.
func (c *Checker) CheckPersonnelReturns(ctx context.Context) (int, error) {
	absences, err := c.repos.Absences.Load(ctx)
	if err != nil {
		return 0, err
	}

	now := c.now()
	created := 0
	for _, a := range absences {
		if a.Notified || !a.Active() {
			continue
		}
		end, err := model.ParseDate(a.EndDate)
		if err != nil || !within(now, end, ReturnWindow) {
			continue
		}

		name := a.Label
		if name == "" {
			name = a.PersonnelName
		}
		msg := fmt.Sprintf("%s reviendra dans %d jours (%s)", name, daysUntil(now, end), formatWhen(end))
		if _, err := c.Notify(ctx, "Retour de personnel imminent", msg, model.NotifyInfo); err != nil {
			return created, err
		}
		created++

		if err := c.repos.Absences.Update(ctx, a.ID, func(x *model.PersonnelAbsence) { x.Notified = true }); err != nil {
			return created, fmt.Errorf("failed to flag absence %d: %w", a.ID, err)
		}
	}
	return created, nil
}

// CheckTaskExpirations reminds pending instances due within the expiry
// window, at most once per local calendar day.
func (c *Checker) CheckTaskExpirations(ctx context.Context) (int, error) {
	instances, err := c.repos.Instances.Load(ctx)
	if err != nil {
		return 0, err
	}

	now := c.now()
	today := model.FormatDate(now)
	created := 0
	for _, it := range instances {
		if it.Status != model.InstancePending {
			continue
		}
		due, err := model.ParseDate(it.DueDate)
		if err != nil || !within(now, due, ExpiryWindow) {
			continue
		}
		if last, err := model.ParseDate(it.LastNotified); err == nil && model.FormatDate(last) == today {
			continue
		}

		msg := fmt.Sprintf("La tâche %q expire dans %d jours (%s)", it.Title, daysUntil(now, due), formatWhen(due))
		if _, err := c.Notify(ctx, "Tâche à compléter bientôt", msg, model.NotifyWarning); err != nil {
			return created, err
		}
		created++

		stamp := now.Format(time.RFC3339)
		if err := c.repos.Instances.Update(ctx, it.ID, func(x *model.Instance) { x.LastNotified = stamp }); err != nil {
			return created, fmt.Errorf("failed to flag instance %d: %w", it.ID, err)
		}
	}
	return created, nil
}

// CheckLowOperability raises one alert while fleet operability is below
// the threshold and clears the latch once it recovers.
func (c *Checker) CheckLowOperability(ctx context.Context) (int, error) {
	equipment, err := c.repos.Equipment.Load(ctx)
	if err != nil {
		return 0, err
	}

	operability := stats.TotalOperability(equipment)
	_, latched := c.store.GetItem(ctx, LowOperabilityKey)

	if float64(operability) >= c.threshold {
		if latched {
			c.store.RemoveItem(ctx, LowOperabilityKey)
			c.logger.Info("operability recovered", zap.Int("operability", operability))
		}
		return 0, nil
	}
	if latched {
		return 0, nil
	}

	msg := fmt.Sprintf("L'opérabilité totale du parc d'équipements est à %d%%, en dessous du seuil de %g%%", operability, c.threshold)
	if _, err := c.Notify(ctx, "Alerte d'opérabilité globale", msg, model.NotifyError); err != nil {
		return 0, err
	}
	if err := c.store.Put(ctx, LowOperabilityKey, "true"); err != nil {
		return 1, err
	}
	return 1, nil
}

// within reports whether target lies in [now, now+window].
func within(now, target time.Time, window time.Duration) bool {
	d := target.Sub(now)
	return d >= 0 && d <= window
}

func daysUntil(now, target time.Time) int {
	return int(math.Ceil(target.Sub(now).Hours() / 24))
}

func formatWhen(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}
