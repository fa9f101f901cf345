// Package realdialog provides a TUI-based DialogProvider using charmbracelet/huh.
//
// The migration owns the controlling terminal for its whole run, so forms are
// rendered in place before any child process is started.
package realdialog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/acolita/svn2git/internal/ports"
	"github.com/charmbracelet/huh"
)

// Provider implements ports.DialogProvider with huh forms.
type Provider struct {
	accessible bool
}

// New returns a new TUI dialog provider.
// Accessible mode renders plain prompts, which works on dumb terminals.
func New(accessible bool) *Provider {
	return &Provider{accessible: accessible}
}

// CredentialsForm asks for the SVN username and password.
// Aborting the form (Ctrl+C, Esc) returns the prefill with Confirmed=false.
func (p *Provider) CredentialsForm(prefill ports.CredentialsFormData) (ports.CredentialsFormData, error) {
	result := prefill
	result.Confirmed = false

	form := newCredentialsForm(&result).WithAccessible(p.accessible)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return prefill, nil
		}
		return prefill, fmt.Errorf("credentials form: %w", err)
	}

	result.UserName = strings.TrimSpace(result.UserName)
	return result, nil
}

func newCredentialsForm(result *ports.CredentialsFormData) *huh.Form {
	title := "SVN credentials"
	if result.Repository != "" {
		title = "SVN credentials for " + result.Repository
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description("Username for transports that need it (http(s), svn)").
				Validate(validateUserName).
				Value(&result.UserName),

			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&result.Password),

			huh.NewConfirm().
				Title("Use these credentials for the migration?").
				Value(&result.Confirmed),
		),
	)
}

// validateUserName rejects names git svn would pass through to the server broken.
func validateUserName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("username is required")
	}
	if strings.ContainsAny(name, "\"\n\r") {
		return errors.New("username must not contain quotes or line breaks")
	}
	return nil
}

var _ ports.DialogProvider = (*Provider)(nil)
