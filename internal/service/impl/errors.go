package impl

import (
	"errors"

	"talentlink/internal/domain"
)

const (
	minPasswordBytes = 8
	maxPasswordBytes = 72 // bcrypt input limit
	minUsernameRunes = 3
	maxUsernameRunes = 50
	maxContentRunes  = 2000
	minQueryRunes    = 2
)

var (
	ErrEmptyPassword   = errors.New("empty password")
	ErrPasswordLength  = domain.Validation("Password must be between 8 and 72 bytes")
	ErrInvalidEmail    = domain.Validation("A valid email address is required")
	ErrUsernameLength  = domain.Validation("Username must be between 3 and 50 characters")
	ErrInvalidRole     = domain.Validation("Role must be one of freelancer, client, both")
	ErrEmptyCredential = domain.Validation("Email and password are required")
	ErrInvalidPaging   = domain.Validation("skip must be >= 0 and limit between 1 and 100")
)
