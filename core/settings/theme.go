// Package settings keeps the client's presentation preferences, independent of the session.
package settings

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
)

// ThemeKey is the storage key of the theme preference.
const ThemeKey = "theme"

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

var ErrUnknownTheme = errors.New("theme must be dark or light")

func ParseTheme(s string) (Theme, error) {
	switch t := Theme(s); t {
	case Light, Dark:
		return t, nil
	default:
		return "", ErrUnknownTheme
	}
}

// Themes reads and writes the theme preference.
type Themes struct {
	storage core.Storage
}

func NewThemes(storage core.Storage) *Themes {
	return &Themes{storage: storage}
}

// Load returns the stored theme. Missing or unknown values read as Light.
func (t *Themes) Load(ctx context.Context) (Theme, error) {
	val, err := t.storage.Get(ctx, ThemeKey)
	if err != nil {
		if errors.Cause(err) == core.ErrKeyNotFound {
			return Light, nil
		}
		return Light, errors.Wrap(err, "loading theme")
	}
	if theme, err := ParseTheme(val); err == nil {
		return theme, nil
	}
	return Light, nil
}

func (t *Themes) Set(ctx context.Context, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	return errors.Wrap(t.storage.Set(ctx, ThemeKey, string(theme)), "saving theme")
}

// Toggle flips the stored theme and returns the new one.
func (t *Themes) Toggle(ctx context.Context) (Theme, error) {
	cur, err := t.Load(ctx)
	if err != nil {
		return cur, err
	}
	next := Dark
	if cur == Dark {
		next = Light
	}
	if err = t.Set(ctx, next); err != nil {
		return cur, err
	}
	return next, nil
}
