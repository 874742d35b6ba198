// Package prefs keeps per-session UI preferences. Every preference is stored
// under its own session key and decoded on its own, so one corrupt value
// falls back to its default without affecting the others.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mdmops/console/internal/shared"
)

// Session keys.
const (
	KeyTheme    = "prefs.theme"
	KeySidebar  = "prefs.sidebarOpen"
	KeyTooltips = "prefs.tooltipsEnabled"
	KeyTunnel   = "prefs.tunnelURL"
)

// Theme values.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Preferences is the effective preference set of a session.
type Preferences struct {
	Theme           string `json:"theme"`
	SidebarOpen     bool   `json:"sidebarOpen"`
	TooltipsEnabled bool   `json:"tooltipsEnabled"`
	TunnelURL       string `json:"tunnelURL"`
}

// Defaults returns the preferences of a fresh session.
func Defaults() Preferences {
	return Preferences{Theme: ThemeSystem, SidebarOpen: true, TooltipsEnabled: true}
}

// Update is a partial change; nil fields are left untouched.
type Update struct {
	Theme           *string `json:"theme" validate:"omitempty,oneof=light dark system"`
	SidebarOpen     *bool   `json:"sidebarOpen"`
	TooltipsEnabled *bool   `json:"tooltipsEnabled"`
	TunnelURL       *string `json:"tunnelURL" validate:"omitempty,max=2048,url,startswith=http"`
}

// Read decodes the preferences stored in sess.
func Read(sess *shared.Session) Preferences {
	p := Defaults()
	if sess == nil {
		return p
	}
	switch v := sess.Get(KeyTheme); v {
	case ThemeLight, ThemeDark, ThemeSystem:
		p.Theme = v
	}
	if b, err := strconv.ParseBool(sess.Get(KeySidebar)); err == nil {
		p.SidebarOpen = b
	}
	if b, err := strconv.ParseBool(sess.Get(KeyTooltips)); err == nil {
		p.TooltipsEnabled = b
	}
	p.TunnelURL = strings.TrimSpace(sess.Get(KeyTunnel))
	return p
}

// TunnelCheck validates a backend override URL.
type TunnelCheck func(raw string) error

// ErrTunnelRejected wraps the reason a tunnel URL was refused.
var ErrTunnelRejected = errors.New("prefs: tunnel url rejected")

// Apply writes the non-nil fields of u into sess. An empty tunnel URL clears
// the override; any other value must pass check, and a nil check refuses
// every override. Nothing is written when the tunnel URL is refused.
func Apply(sess *shared.Session, u Update, check TunnelCheck) error {
	var tunnel string
	if u.TunnelURL != nil {
		tunnel = strings.TrimRight(strings.TrimSpace(*u.TunnelURL), "/")
		if tunnel != "" {
			if check == nil {
				return fmt.Errorf("%w: overrides are disabled", ErrTunnelRejected)
			}
			if err := check(tunnel); err != nil {
				return fmt.Errorf("%w: %v", ErrTunnelRejected, err)
			}
		}
	}
	if u.Theme != nil {
		sess.Set(KeyTheme, *u.Theme)
	}
	if u.SidebarOpen != nil {
		sess.Set(KeySidebar, strconv.FormatBool(*u.SidebarOpen))
	}
	if u.TooltipsEnabled != nil {
		sess.Set(KeyTooltips, strconv.FormatBool(*u.TooltipsEnabled))
	}
	if u.TunnelURL != nil {
		if tunnel != "" {
			sess.Set(KeyTunnel, tunnel)
		} else {
			sess.Delete(KeyTunnel)
		}
	}
	return nil
}

// TunnelURL returns the backend override of the session in ctx.
func TunnelURL(ctx context.Context) string {
	return Read(shared.SessionFromContext(ctx)).TunnelURL
}
