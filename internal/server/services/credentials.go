// Package services contains server-side business logic. This file implements
// CredentialStore, the encrypted, digest-indexed store of WebAuthn
// registrations.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/dmitrijs2005/passkeeper/internal/cryptox"
	"github.com/dmitrijs2005/passkeeper/internal/dbx"
	"github.com/dmitrijs2005/passkeeper/internal/hashx"
	"github.com/dmitrijs2005/passkeeper/internal/logging"
	"github.com/dmitrijs2005/passkeeper/internal/server/models"
	"github.com/dmitrijs2005/passkeeper/internal/server/repositories/repomanager"
)

// CredentialStore persists registrations. Rows are keyed by digests of the
// username, user handle and credential id; everything else is sealed with
// the cipher before it reaches the database.
//
// Absent records are reported as nil or empty results, never as errors.
type CredentialStore struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	cipher                *cryptox.Cipher
	maxCredentialsPerUser int
	logger                logging.Logger
	now                   func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewCredentialStore constructs a CredentialStore. maxCredentialsPerUser <= 0
// disables the per-user credential limit.
func NewCredentialStore(db *sql.DB, m repomanager.RepositoryManager, c *cryptox.Cipher,
	maxCredentialsPerUser int, logger logging.Logger) *CredentialStore {
	return &CredentialStore{
		db:                    db,
		repomanager:           m,
		cipher:                c,
		maxCredentialsPerUser: maxCredentialsPerUser,
		logger:                logger.With("module", "credentialstore"),
		now:                   time.Now,
	}
}

// AddRegistration stores user and credential in one transaction. It is an
// idempotent upsert: repeating it refreshes the sealed records.
//
// It fails with common.ErrUserHandleMismatch when the username is bound to
// another user handle, common.ErrCredentialClaimed when the credential id
// belongs to another user and common.ErrCredentialLimit when the user already
// owns the maximum number of credentials. Nothing is written on failure.
func (s *CredentialStore) AddRegistration(ctx context.Context, user models.UserAccount, credential models.Credential) error {
	if user.Username == "" || len(user.UserHandle) == 0 || len(credential.ID) == 0 {
		return errors.New("registration requires a username, a user handle and a credential id")
	}
	if credential.UserHandle == nil {
		credential.UserHandle = user.UserHandle
	}
	if !bytes.Equal(credential.UserHandle, user.UserHandle) {
		return common.ErrUserHandleMismatch
	}

	usernameHash := hashx.Digest(user.Username)
	handleHash := hashx.DigestBytes(user.UserHandle)
	credentialHash := hashx.DigestBytes(credential.ID)

	userEnvelope, err := s.cipher.EncryptRecord(user)
	if err != nil {
		return err
	}
	registrationEnvelope, err := s.cipher.EncryptRecord(models.Registration{
		User:         user,
		Credential:   credential,
		RegisteredAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		credentials := s.repomanager.Credentials(tx)

		owner, err := users.GetByUserHandleHash(ctx, handleHash)
		switch {
		case err == nil && owner.UsernameHash != usernameHash:
			return common.ErrUserHandleMismatch
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return err
		}

		ok, err := users.Upsert(ctx, &models.UserRow{
			UsernameHash:   usernameHash,
			UserHandleHash: handleHash,
			Envelope:       userEnvelope,
		})
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrUserHandleMismatch
		}

		exists, err := users.ExistsByUserHandleHash(ctx, handleHash)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: user handle has no user row", common.ErrUserHandleMismatch)
		}

		if s.maxCredentialsPerUser > 0 {
			n, err := credentials.CountByUserHandleHash(ctx, handleHash, credentialHash)
			if err != nil {
				return err
			}
			if n >= s.maxCredentialsPerUser {
				return common.ErrCredentialLimit
			}
		}

		ok, err = credentials.Upsert(ctx, &models.CredentialRow{
			CredentialIDHash: credentialHash,
			UserHandleHash:   handleHash,
			Envelope:         registrationEnvelope,
		})
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrCredentialClaimed
		}
		return nil
	})
	if err != nil {
		s.logger.Warn(ctx, "registration rejected", "credential", short(credentialHash), "error", err)
		return storageError(err)
	}

	s.logger.Info(ctx, "registration stored", "credential", short(credentialHash), "user", short(usernameHash))
	return nil
}

// GetRegistrationsByUsername returns every registration of username, oldest
// first. Unknown usernames yield an empty slice. Each registration carries
// the account as it is now, not as it was when the credential was added.
func (s *CredentialStore) GetRegistrationsByUsername(ctx context.Context, username string) ([]models.Registration, error) {
	rows, err := s.repomanager.Credentials(s.db).ListByUsernameHash(ctx, hashx.Digest(username))
	if err != nil {
		return nil, storageError(err)
	}

	result := make([]models.Registration, 0, len(rows))
	if len(rows) == 0 {
		return result, nil
	}

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		var reg models.Registration
		if err := s.cipher.DecryptRecord(row.Envelope, &reg); err != nil {
			s.logger.Error(ctx, "registration unreadable", "credential", short(row.CredentialIDHash))
			return nil, err
		}
		if user != nil {
			reg.User = *user
		}
		result = append(result, reg)
	}
	return result, nil
}

// GetUserByHandle returns the account owning userHandle, or nil.
func (s *CredentialStore) GetUserByHandle(ctx context.Context, userHandle []byte) (*models.UserAccount, error) {
	row, err := s.repomanager.Users(s.db).GetByUserHandleHash(ctx, hashx.DigestBytes(userHandle))
	return s.openUser(ctx, row, err)
}

// GetUserByUsername returns the account registered as username, or nil.
func (s *CredentialStore) GetUserByUsername(ctx context.Context, username string) (*models.UserAccount, error) {
	row, err := s.repomanager.Users(s.db).GetByUsernameHash(ctx, hashx.Digest(username))
	return s.openUser(ctx, row, err)
}

// UserExists reports whether username has been registered. Nothing is
// decrypted.
func (s *CredentialStore) UserExists(ctx context.Context, username string) (bool, error) {
	ok, err := s.repomanager.Users(s.db).ExistsByUsernameHash(ctx, hashx.Digest(username))
	if err != nil {
		return false, storageError(err)
	}
	return ok, nil
}

// Lookup returns the credential matching both credentialID and userHandle,
// or nil.
func (s *CredentialStore) Lookup(ctx context.Context, credentialID, userHandle []byte) (*models.Credential, error) {
	row, err := s.repomanager.Credentials(s.db).Get(ctx, hashx.DigestBytes(credentialID), hashx.DigestBytes(userHandle))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(err)
	}

	var reg models.Registration
	if err := s.cipher.DecryptRecord(row.Envelope, &reg); err != nil {
		return nil, err
	}
	return &reg.Credential, nil
}

// LookupAll returns every credential stored under credentialID regardless of
// owner.
func (s *CredentialStore) LookupAll(ctx context.Context, credentialID []byte) ([]models.Credential, error) {
	rows, err := s.repomanager.Credentials(s.db).ListByIDHash(ctx, hashx.DigestBytes(credentialID))
	if err != nil {
		return nil, storageError(err)
	}

	result := make([]models.Credential, 0, len(rows))
	for _, row := range rows {
		var reg models.Registration
		if err := s.cipher.DecryptRecord(row.Envelope, &reg); err != nil {
			return nil, err
		}
		result = append(result, reg.Credential)
	}
	return result, nil
}

// UpdateSignatureCount stores count as the credential's signature counter.
// Whether the counter moved forward is the caller's concern. An unknown
// credential yields common.ErrorNotFound.
func (s *CredentialStore) UpdateSignatureCount(ctx context.Context, credentialID, userHandle []byte, count uint32) error {
	credentialHash := hashx.DigestBytes(credentialID)
	handleHash := hashx.DigestBytes(userHandle)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Credentials(tx)

		row, err := repo.Get(ctx, credentialHash, handleHash)
		if err != nil {
			return err
		}

		var reg models.Registration
		if err := s.cipher.DecryptRecord(row.Envelope, &reg); err != nil {
			return err
		}
		reg.Credential.SignatureCount = count

		envelope, err := s.cipher.EncryptRecord(reg)
		if err != nil {
			return err
		}

		ok, err := repo.UpdateEnvelope(ctx, credentialHash, handleHash, envelope)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorNotFound
		}
		return nil
	})
	if err != nil {
		return storageError(err)
	}

	s.logger.Debug(ctx, "signature count updated", "credential", short(credentialHash), "count", count)
	return nil
}

// Close releases the connection pool. Further calls are no-ops.
func (s *CredentialStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func (s *CredentialStore) openUser(ctx context.Context, row *models.UserRow, err error) (*models.UserAccount, error) {
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(err)
	}

	var user models.UserAccount
	if err := s.cipher.DecryptRecord(row.Envelope, &user); err != nil {
		s.logger.Error(ctx, "user record unreadable", "user", short(row.UsernameHash))
		return nil, err
	}
	return &user, nil
}

// storageError passes domain errors through and marks everything else as a
// storage failure.
func storageError(err error) error {
	for _, known := range []error{
		common.ErrUserHandleMismatch,
		common.ErrCredentialClaimed,
		common.ErrCredentialLimit,
		common.ErrDecryption,
		common.ErrorNotFound,
		common.ErrStorageUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
}

// short trims a digest for log lines.
func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
