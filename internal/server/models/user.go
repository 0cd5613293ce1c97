// Package models holds the records the credential store persists and the
// payloads parked in ephemeral request storage between ceremony steps.
package models

// UserAccount is a WebAuthn user. UserHandle is 64 random bytes assigned on
// first registration and never changed or reused; only DisplayName may be
// updated afterwards.
type UserAccount struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	UserHandle  []byte `json:"user_handle"`
}

// UserHandleSize is the length of a generated user handle.
const UserHandleSize = 64
