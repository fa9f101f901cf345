// Package fakedialog provides a test fake for ports.DialogProvider.
package fakedialog

import "github.com/acolita/svn2git/internal/ports"

// Provider is a controllable fake DialogProvider for testing.
type Provider struct {
	// Result is the form data returned by CredentialsForm.
	Result ports.CredentialsFormData
	// Err is the error returned by CredentialsForm.
	Err error
	// Called tracks whether CredentialsForm was invoked.
	Called bool
	// ReceivedPrefill captures the prefill data passed to CredentialsForm.
	ReceivedPrefill ports.CredentialsFormData
}

// New returns a new fake dialog provider.
func New() *Provider {
	return &Provider{}
}

// CredentialsForm returns the pre-configured Result and Err.
func (p *Provider) CredentialsForm(prefill ports.CredentialsFormData) (ports.CredentialsFormData, error) {
	p.Called = true
	p.ReceivedPrefill = prefill
	if p.Err != nil {
		return prefill, p.Err
	}
	return p.Result, nil
}
