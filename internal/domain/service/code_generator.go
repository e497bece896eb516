package service

// CodeGenerator produces human-friendly unique codes such as referral and agent codes.
type CodeGenerator interface {
	// Generate returns a random code with the given prefix.
	Generate(prefix string) (string, error)
}
