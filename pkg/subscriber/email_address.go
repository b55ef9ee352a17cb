package subscriber

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// EmailAddress is a validated recipient: an address and an optional display
// name. The zero value is not valid; use NewEmailAddress.
type EmailAddress struct {
	email string
	name  string
}

// NewEmailAddress validates email and returns the recipient. name may be
// empty.
func NewEmailAddress(email, name string) (EmailAddress, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return EmailAddress{}, err
	}
	return EmailAddress{email: email, name: name}, nil
}

// MustEmailAddress is like NewEmailAddress but panics on invalid input.
// Intended for literals in tests and examples.
func MustEmailAddress(email, name string) EmailAddress {
	addr, err := NewEmailAddress(email, name)
	if err != nil {
		panic(err)
	}
	return addr
}

// ValidateEmail reports whether email is a syntactically valid address.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

func (a EmailAddress) Email() string { return a.email }

func (a EmailAddress) Name() string { return a.name }

// nameOrNil returns the display name, or nil so JSON encodes null when no
// name was given.
func (a EmailAddress) nameOrNil() any {
	if a.name == "" {
		return nil
	}
	return a.name
}

func (a EmailAddress) String() string {
	if a.name == "" {
		return a.email
	}
	return fmt.Sprintf("%s <%s>", a.name, a.email)
}
