package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const DefaultMaxUsernameLength = 32

var validate = validator.New()

// UsernameValidator enforces the rules a CONNECT username must follow before registration:
// non-empty, bounded length, no user list delimiter, no control character, not the system label.
type UsernameValidator struct {
	tag string
}

func NewUsernameValidator(maxLength int) UsernameValidator {
	if maxLength <= 0 {
		maxLength = DefaultMaxUsernameLength
	}
	// 0x2C is the user list delimiter ','
	return UsernameValidator{tag: fmt.Sprintf("required,max=%d,excludesall=0x2C,ne=%s", maxLength, domain.SystemSender)}
}

func (v UsernameValidator) Validate(username string) error {
	if err := validate.Var(username, v.tag); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidUsername, describe(err))
	}
	if strings.IndexFunc(username, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: control characters are not allowed", errors.ErrInvalidUsername)
	}
	if strings.TrimSpace(username) != username {
		return fmt.Errorf("%w: leading or trailing spaces are not allowed", errors.ErrInvalidUsername)
	}
	return nil
}

func describe(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return err.Error()
	}
	fieldErr := validationErrors[0]
	switch fieldErr.Tag() {
	case "required":
		return "username is required"
	case "max":
		return fmt.Sprintf("at most %s characters", fieldErr.Param())
	case "excludesall":
		return fmt.Sprintf("%q is not allowed", domain.UserListDelimiter)
	case "ne":
		return fmt.Sprintf("%q is reserved", domain.SystemSender)
	default:
		return fieldErr.Error()
	}
}
