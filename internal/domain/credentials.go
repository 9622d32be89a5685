package domain

import "strings"

// Credentials is the opaque bundle a secret store returns for one source.
type Credentials map[string]string

// Get returns the value of field, or "" when absent.
func (c Credentials) Get(field string) string {
	return c[field]
}

// Require fails with ErrCredentialsNotFound naming every missing field.
func (c Credentials) Require(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(c[f]) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &MissingCredentialsError{Fields: missing}
	}
	return nil
}

// MissingCredentialsError lists the fields absent from a bundle.
type MissingCredentialsError struct {
	Fields []string
}

func (e *MissingCredentialsError) Error() string {
	return "missing credential fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingCredentialsError) Unwrap() error {
	return ErrCredentialsNotFound
}
