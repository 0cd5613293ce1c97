// Package ceremony drives WebAuthn registration and assertion ceremonies with
// go-webauthn, parking challenges in the ephemeral request stores and
// persisting credentials in the credential store.
package ceremony

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/dmitrijs2005/passkeeper/internal/logging"
	"github.com/dmitrijs2005/passkeeper/internal/server/config"
	"github.com/dmitrijs2005/passkeeper/internal/server/ephemeral"
	"github.com/dmitrijs2005/passkeeper/internal/server/models"
	"github.com/dmitrijs2005/passkeeper/internal/server/storage"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

var (
	// ErrRequestNotFound covers unknown, expired and already used request ids.
	ErrRequestNotFound = errors.New("ceremony request not found")
	// ErrCloneWarning rejects an assertion whose signature counter did not
	// move forward.
	ErrCloneWarning = errors.New("authenticator may be cloned")
	ErrInvalidInput = errors.New("invalid ceremony input")
)

// CredentialStore is the part of services.CredentialStore ceremonies use.
type CredentialStore interface {
	AddRegistration(ctx context.Context, user models.UserAccount, credential models.Credential) error
	GetRegistrationsByUsername(ctx context.Context, username string) ([]models.Registration, error)
	GetUserByHandle(ctx context.Context, userHandle []byte) (*models.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*models.UserAccount, error)
	UpdateSignatureCount(ctx context.Context, credentialID, userHandle []byte, count uint32) error
}

type passkeyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type passkeyParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultPasskeyParser struct{}

func (defaultPasskeyParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultPasskeyParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// AssertionResult identifies who just authenticated and with what.
type AssertionResult struct {
	User           models.UserAccount
	CredentialID   []byte
	SignatureCount uint32
}

type Service struct {
	webauthn      passkeyProvider
	parser        passkeyParser
	credentials   CredentialStore
	registrations ephemeral.Store[models.RegistrationRequest]
	assertions    ephemeral.Store[models.AssertionRequest]
	ttl           time.Duration
	logger        logging.Logger

	newUserHandle func() []byte
	newRequestID  func() string
}

// NewService configures the relying party from cfg and binds it to the
// stores in sc.
func NewService(cfg *config.Config, sc *storage.Context, logger logging.Logger) (*Service, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: relying party: %v", common.ErrConfiguration, err)
	}
	return newService(wa, defaultPasskeyParser{}, sc.Credentials, sc.Registrations, sc.Assertions, sc.RequestTTL, logger), nil
}

func newService(
	provider passkeyProvider,
	parser passkeyParser,
	credentials CredentialStore,
	registrations ephemeral.Store[models.RegistrationRequest],
	assertions ephemeral.Store[models.AssertionRequest],
	ttl time.Duration,
	logger logging.Logger,
) *Service {
	if ttl <= 0 {
		ttl = ephemeral.DefaultTTL
	}
	return &Service{
		webauthn:      provider,
		parser:        parser,
		credentials:   credentials,
		registrations: registrations,
		assertions:    assertions,
		ttl:           ttl,
		logger:        logger.With("module", "ceremony"),
		newUserHandle: func() []byte { return common.GenerateRandByteArray(models.UserHandleSize) },
		newRequestID:  ephemeral.NewRequestID,
	}
}

// StartRegistration begins registering a new credential for username. A new
// user gets a fresh user handle; an existing one keeps theirs and has their
// current credentials excluded.
func (s *Service) StartRegistration(ctx context.Context, username, displayName string) (string, *protocol.CredentialCreation, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	account, err := s.credentials.GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if account == nil {
		account = &models.UserAccount{Username: username, UserHandle: s.newUserHandle()}
	}
	if displayName = strings.TrimSpace(displayName); displayName != "" {
		account.DisplayName = displayName
	}
	if account.DisplayName == "" {
		account.DisplayName = username
	}

	user, err := s.loadUser(ctx, *account)
	if err != nil {
		return "", nil, err
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementPreferred),
	}
	if len(user.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(user.credentials).CredentialDescriptors()))
	}

	creation, session, err := s.webauthn.BeginRegistration(user, options...)
	if err != nil {
		return "", nil, fmt.Errorf("begin registration: %w", err)
	}

	requestID := s.newRequestID()
	if err := s.registrations.Store(ctx, requestID, models.RegistrationRequest{User: *account, Session: *session}, s.ttl); err != nil {
		return "", nil, err
	}

	s.logger.Debug(ctx, "registration started", "request", requestID)
	return requestID, creation, nil
}

// FinishRegistration verifies the authenticator response to the request
// started under requestID and stores the new credential.
func (s *Service) FinishRegistration(ctx context.Context, requestID string, response []byte) (*models.Credential, error) {
	req, ok, err := s.registrations.RetrieveAndRemove(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRequestNotFound
	}

	parsed, err := s.parser.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("%w: parse credential response: %v", ErrInvalidInput, err)
	}

	user, err := s.loadUser(ctx, req.User)
	if err != nil {
		return nil, err
	}

	created, err := s.webauthn.CreateCredential(user, req.Session, parsed)
	if err != nil {
		return nil, fmt.Errorf("validate credential response: %w", err)
	}

	credential := models.CredentialFromWebAuthn(req.User.UserHandle, created)
	if err := s.credentials.AddRegistration(ctx, req.User, credential); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "registration finished", "request", requestID)
	return &credential, nil
}

// StartAssertion begins a login. An empty username starts a discoverable
// login where the authenticator picks the credential.
func (s *Service) StartAssertion(ctx context.Context, username string) (string, *protocol.CredentialAssertion, error) {
	username = strings.TrimSpace(username)

	var (
		assertion *protocol.CredentialAssertion
		session   *webauthn.SessionData
		err       error
	)

	if username == "" {
		assertion, session, err = s.webauthn.BeginDiscoverableLogin()
	} else {
		account, lookupErr := s.credentials.GetUserByUsername(ctx, username)
		if lookupErr != nil {
			return "", nil, lookupErr
		}
		if account == nil {
			return "", nil, common.ErrorNotFound
		}
		user, loadErr := s.loadUser(ctx, *account)
		if loadErr != nil {
			return "", nil, loadErr
		}
		assertion, session, err = s.webauthn.BeginLogin(user)
	}
	if err != nil {
		return "", nil, fmt.Errorf("begin login: %w", err)
	}

	requestID := s.newRequestID()
	if err := s.assertions.Store(ctx, requestID, models.AssertionRequest{Username: username, Session: *session}, s.ttl); err != nil {
		return "", nil, err
	}

	s.logger.Debug(ctx, "assertion started", "request", requestID, "discoverable", username == "")
	return requestID, assertion, nil
}

// FinishAssertion verifies the authenticator response to the request started
// under requestID and records the new signature counter.
func (s *Service) FinishAssertion(ctx context.Context, requestID string, response []byte) (*AssertionResult, error) {
	req, ok, err := s.assertions.RetrieveAndRemove(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRequestNotFound
	}

	parsed, err := s.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("%w: parse assertion response: %v", ErrInvalidInput, err)
	}

	var (
		user       *webauthnUser
		credential *webauthn.Credential
	)

	if req.Username != "" {
		account, err := s.credentials.GetUserByUsername(ctx, req.Username)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, common.ErrorNotFound
		}
		if user, err = s.loadUser(ctx, *account); err != nil {
			return nil, err
		}
		if credential, err = s.webauthn.ValidateLogin(user, req.Session, parsed); err != nil {
			return nil, fmt.Errorf("validate login: %w", err)
		}
	} else {
		validated, c, err := s.webauthn.ValidatePasskeyLogin(s.discoverableUser(ctx), req.Session, parsed)
		if err != nil {
			return nil, fmt.Errorf("validate passkey login: %w", err)
		}
		wu, ok := validated.(*webauthnUser)
		if !ok {
			return nil, errors.New("validate passkey login: unexpected user type")
		}
		user, credential = wu, c
	}

	if credential.Authenticator.CloneWarning {
		s.logger.Warn(ctx, "clone warning on assertion", "request", requestID)
		return nil, ErrCloneWarning
	}

	count := credential.Authenticator.SignCount
	if err := s.credentials.UpdateSignatureCount(ctx, credential.ID, user.account.UserHandle, count); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "assertion finished", "request", requestID)
	return &AssertionResult{User: user.account, CredentialID: credential.ID, SignatureCount: count}, nil
}

func (s *Service) discoverableUser(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		account, err := s.credentials.GetUserByHandle(ctx, userHandle)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, common.ErrorNotFound
		}
		return s.loadUser(ctx, *account)
	}
}

func (s *Service) loadUser(ctx context.Context, account models.UserAccount) (*webauthnUser, error) {
	regs, err := s.credentials.GetRegistrationsByUsername(ctx, account.Username)
	if err != nil {
		return nil, err
	}

	credentials := make([]webauthn.Credential, 0, len(regs))
	for _, reg := range regs {
		credentials = append(credentials, reg.Credential.WebAuthn())
	}
	return &webauthnUser{account: account, credentials: credentials}, nil
}
