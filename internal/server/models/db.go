package models

// UserRow is a users table row. Identifiers are stored only as digests; the
// UserAccount lives in Envelope.
type UserRow struct {
	UsernameHash   string
	UserHandleHash string
	Envelope       string
}

// CredentialRow is a credentials table row. Envelope holds a Registration.
type CredentialRow struct {
	CredentialIDHash string
	UserHandleHash   string
	Envelope         string
}
