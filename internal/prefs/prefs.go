// Package prefs reads and writes the scalar user preferences kept next to
// the collections: the declared head count, the UI language and the dark
// mode switch.
package prefs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/smartm-app/smartm/internal/storage"
)

const (
	KeyTotalPersonnel = "total_personnel"
	KeyLanguage       = "language"
	KeyDarkMode       = "darkMode"

	// DefaultTotalPersonnel is assumed until the user declares a head count.
	DefaultTotalPersonnel = 50
	DefaultLanguage       = "fr"
)

// Languages lists the supported UI languages.
var Languages = []string{"fr", "en"}

// Prefs is a typed view over the preference keys of a store.
type Prefs struct {
	store *storage.Store
}

// New returns preferences stored in store.
func New(store *storage.Store) *Prefs {
	return &Prefs{store: store}
}

// TotalPersonnel returns the declared head count, or the default when it
// is unset or unreadable.
func (p *Prefs) TotalPersonnel(ctx context.Context) int {
	v, ok := p.store.GetItem(ctx, KeyTotalPersonnel)
	if !ok {
		return DefaultTotalPersonnel
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return DefaultTotalPersonnel
	}
	return n
}

// SetTotalPersonnel stores the head count.
func (p *Prefs) SetTotalPersonnel(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("total personnel cannot be negative: %d", n)
	}
	return p.store.Put(ctx, KeyTotalPersonnel, strconv.Itoa(n))
}

// Language returns the UI language.
func (p *Prefs) Language(ctx context.Context) string {
	if v, ok := p.store.GetItem(ctx, KeyLanguage); ok && v != "" {
		return v
	}
	return DefaultLanguage
}

// SetLanguage stores the UI language.
func (p *Prefs) SetLanguage(ctx context.Context, lang string) error {
	for _, l := range Languages {
		if l == lang {
			return p.store.Put(ctx, KeyLanguage, lang)
		}
	}
	return fmt.Errorf("unsupported language %q", lang)
}

// DarkMode reports whether dark mode is on. Only the exact value "true"
// enables it.
func (p *Prefs) DarkMode(ctx context.Context) bool {
	v, _ := p.store.GetItem(ctx, KeyDarkMode)
	return v == "true"
}

// SetDarkMode stores the dark mode switch.
func (p *Prefs) SetDarkMode(ctx context.Context, on bool) error {
	return p.store.Put(ctx, KeyDarkMode, strconv.FormatBool(on))
}
