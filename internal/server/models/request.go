package models

import "github.com/go-webauthn/webauthn/webauthn"

// RegistrationRequest is parked between StartRegistration and
// FinishRegistration.
type RegistrationRequest struct {
	User    UserAccount          `json:"user"`
	Session webauthn.SessionData `json:"session"`
}

// AssertionRequest is parked between StartAssertion and FinishAssertion.
// Username is empty for discoverable (usernameless) logins.
type AssertionRequest struct {
	Username string               `json:"username,omitempty"`
	Session  webauthn.SessionData `json:"session"`
}
