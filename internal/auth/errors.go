package auth

import "fmt"

var (
	ErrInvalidToken         = fmt.Errorf("invalid token")
	ErrInvalidSigningMethod = fmt.Errorf("invalid signing method")
	ErrInvalidSubject       = fmt.Errorf("invalid token subject")
	ErrMalformedHash        = fmt.Errorf("malformed password hash")
)
