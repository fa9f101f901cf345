package config

import (
	"fmt"

	"github.com/acolita/svn2git/internal/ports"
)

// CredentialMethod selects how a credential value is interpreted.
type CredentialMethod string

const (
	MethodArgs    CredentialMethod = "args"    // the value is the credential
	MethodEnv     CredentialMethod = "env"     // the value names an environment variable
	MethodNone    CredentialMethod = "none"    // treat as empty
	MethodKeyring CredentialMethod = "keyring" // password stored in the OS keyring
	MethodPrompt  CredentialMethod = "prompt"  // ask the operator before the run
)

// CredentialsConfig holds SVN credentials and their resolution methods.
type CredentialsConfig struct {
	UserName       string           `yaml:"username"`
	UserNameMethod CredentialMethod `yaml:"username_method"`
	Password       string           `yaml:"password"`
	PasswordMethod CredentialMethod `yaml:"password_method"`
}

// Credentials are resolved SVN credentials.
type Credentials struct {
	UserName string
	Password string
}

// CredentialSources supplies the collaborators used by Resolve.
type CredentialSources struct {
	LookupEnv func(key string) (string, bool)
	Secrets   ports.SecretStore
	Dialog    ports.DialogProvider
}

func (c *CredentialsConfig) validate() error {
	if c.UserNameMethod == "" {
		c.UserNameMethod = MethodArgs
	}
	if c.PasswordMethod == "" {
		c.PasswordMethod = MethodArgs
	}

	switch c.UserNameMethod {
	case MethodArgs, MethodEnv, MethodNone, MethodPrompt:
	default:
		return fmt.Errorf("invalid username method %q", c.UserNameMethod)
	}

	switch c.PasswordMethod {
	case MethodArgs, MethodEnv, MethodNone, MethodKeyring, MethodPrompt:
	default:
		return fmt.Errorf("invalid password method %q", c.PasswordMethod)
	}

	return nil
}

// ResolveCredential interprets value according to method. Only the methods
// that need no collaborator besides the environment are handled here.
func ResolveCredential(method CredentialMethod, value string, lookupEnv func(string) (string, bool)) (string, error) {
	switch method {
	case MethodArgs, "":
		return value, nil
	case MethodNone:
		return "", nil
	case MethodEnv:
		if value == "" {
			return "", nil
		}
		v, ok := lookupEnv(value)
		if !ok {
			return "", fmt.Errorf("environment variable %q is not set", value)
		}
		return v, nil
	default:
		return "", fmt.Errorf("credential method %q cannot be resolved from configuration", method)
	}
}

// Resolve resolves the username and password for repository.
func (c CredentialsConfig) Resolve(repository string, src CredentialSources) (Credentials, error) {
	var creds Credentials
	var err error

	if c.UserNameMethod != MethodPrompt {
		creds.UserName, err = ResolveCredential(c.UserNameMethod, c.UserName, src.LookupEnv)
		if err != nil {
			return Credentials{}, fmt.Errorf("resolve username: %w", err)
		}
	}

	switch c.PasswordMethod {
	case MethodKeyring:
		if src.Secrets == nil {
			return Credentials{}, fmt.Errorf("resolve password: no keyring available")
		}
		secret, err := src.Secrets.GetSVNPassword(repository, creds.UserName)
		if err != nil {
			return Credentials{}, fmt.Errorf("resolve password: %w", err)
		}
		creds.Password = string(secret)
	case MethodPrompt:
	default:
		creds.Password, err = ResolveCredential(c.PasswordMethod, c.Password, src.LookupEnv)
		if err != nil {
			return Credentials{}, fmt.Errorf("resolve password: %w", err)
		}
	}

	if c.UserNameMethod == MethodPrompt || c.PasswordMethod == MethodPrompt {
		if src.Dialog == nil {
			return Credentials{}, fmt.Errorf("credentials prompt requested but no terminal is available")
		}
		form, err := src.Dialog.CredentialsForm(ports.CredentialsFormData{
			Repository: repository,
			UserName:   creds.UserName,
			Password:   creds.Password,
		})
		if err != nil {
			return Credentials{}, err
		}
		if !form.Confirmed {
			return Credentials{}, fmt.Errorf("credentials prompt cancelled")
		}
		if c.UserNameMethod == MethodPrompt {
			creds.UserName = form.UserName
		}
		if c.PasswordMethod == MethodPrompt {
			creds.Password = form.Password
		}
	}

	return creds, nil
}
