package models

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Credential is a registered public-key credential together with the
// authenticator metadata the ceremony engine needs on the next assertion.
type Credential struct {
	ID              []byte   `json:"id"`
	PublicKey       []byte   `json:"public_key"`
	SignatureCount  uint32   `json:"signature_count"`
	UserHandle      []byte   `json:"user_handle"`
	AttestationType string   `json:"attestation_type,omitempty"`
	Transports      []string `json:"transports,omitempty"`
	AAGUID          []byte   `json:"aaguid,omitempty"`
	UserPresent     bool     `json:"user_present"`
	UserVerified    bool     `json:"user_verified"`
	BackupEligible  bool     `json:"backup_eligible"`
	BackupState     bool     `json:"backup_state"`
	Attachment      string   `json:"attachment,omitempty"`
}

// Registration is what a credential row stores: the owning account as it
// was at registration time and the credential itself. Reads through the
// credential store replace User with the current account.
type Registration struct {
	User         UserAccount `json:"user"`
	Credential   Credential  `json:"credential"`
	RegisteredAt time.Time   `json:"registered_at"`
}

// CredentialFromWebAuthn converts an engine credential owned by userHandle.
func CredentialFromWebAuthn(userHandle []byte, c *webauthn.Credential) Credential {
	transports := make([]string, 0, len(c.Transport))
	for _, t := range c.Transport {
		transports = append(transports, string(t))
	}

	return Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		SignatureCount:  c.Authenticator.SignCount,
		UserHandle:      userHandle,
		AttestationType: c.AttestationType,
		Transports:      transports,
		AAGUID:          c.Authenticator.AAGUID,
		UserPresent:     c.Flags.UserPresent,
		UserVerified:    c.Flags.UserVerified,
		BackupEligible:  c.Flags.BackupEligible,
		BackupState:     c.Flags.BackupState,
		Attachment:      string(c.Authenticator.Attachment),
	}
}

// WebAuthn converts c back into the engine's representation.
func (c Credential) WebAuthn() webauthn.Credential {
	transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
	for _, t := range c.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}

	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.UserPresent,
			UserVerified:   c.UserVerified,
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:     c.AAGUID,
			SignCount:  c.SignatureCount,
			Attachment: protocol.AuthenticatorAttachment(c.Attachment),
		},
	}
}
