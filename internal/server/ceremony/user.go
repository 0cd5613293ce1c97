package ceremony

import (
	"github.com/dmitrijs2005/passkeeper/internal/server/models"
	"github.com/go-webauthn/webauthn/webauthn"
)

// webauthnUser adapts a stored account to webauthn.User.
type webauthnUser struct {
	account     models.UserAccount
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte {
	return u.account.UserHandle
}

func (u *webauthnUser) WebAuthnName() string {
	return u.account.Username
}

func (u *webauthnUser) WebAuthnDisplayName() string {
	return u.account.DisplayName
}

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
