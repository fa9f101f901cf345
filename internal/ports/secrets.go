package ports

// SecretStore persists credentials outside of the configuration file.
type SecretStore interface {
	// GetSVNPassword returns the stored password, or nil if none is stored.
	GetSVNPassword(repository, user string) ([]byte, error)

	// StoreSVNPassword stores the password for the repository and user.
	StoreSVNPassword(repository, user string, password []byte) error

	// DeleteSVNPassword removes a stored password. Missing entries are not an error.
	DeleteSVNPassword(repository, user string) error
}
