// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// PasswordHasher hashes and verifies member passwords.
type PasswordHasher interface {
	// Hash enforces the password policy, then returns a salted hash.
	// Weak passwords fail with ErrPasswordStrength.
	Hash(password string) (string, error)

	// Check compares a plaintext password with a stored hash.
	Check(password, hash string) bool
}
