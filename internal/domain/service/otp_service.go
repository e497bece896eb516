package service

import "time"

// OTPService issues and checks one-time codes for mobile verification.
type OTPService interface {
	// NewSecret creates a secret bound to the account label.
	NewSecret(accountName string) (string, error)

	// Code returns the code valid at t for secret. It is handed to the SMS
	// gateway and never returned to API clients.
	Code(secret string, t time.Time) (string, error)

	// Validate checks code against secret at t.
	Validate(code, secret string, t time.Time) bool
}
