package ports

// CredentialsFormData holds the result of a credentials form.
type CredentialsFormData struct {
	Repository string
	UserName   string
	Password   string
	Confirmed  bool
}

// DialogProvider abstracts interactive user dialogs.
// Implementations may use TUI forms or test fakes.
type DialogProvider interface {
	// CredentialsForm asks the operator for SVN credentials.
	// Pre-filled values come from the input data; the user can modify them.
	// Returns the final form data with Confirmed=true if the user accepted.
	CredentialsForm(prefill CredentialsFormData) (CredentialsFormData, error)
}
