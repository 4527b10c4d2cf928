package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/smartm-app/smartm/internal/model"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDay turns a flag value into a YYYY-MM-DD date. Canonical dates are
// taken as is; anything else ("today", "next friday", "in 3 days") is read
// relative to now. Empty input means today.
func parseDay(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.FormatDate(now), nil
	}
	if t, err := model.ParseDate(s); err == nil {
		return model.FormatDate(t), nil
	}
	switch strings.ToLower(s) {
	case "today":
		return model.FormatDate(now), nil
	case "yesterday":
		return model.FormatDate(now.AddDate(0, 0, -1)), nil
	}

	r, err := dateParser.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return "", fmt.Errorf("unrecognized date %q", s)
	}
	return model.FormatDate(r.Time), nil
}
