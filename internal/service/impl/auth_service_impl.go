package impl

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"talentlink/internal/domain"
	"talentlink/internal/dto"
	"talentlink/internal/observability/logging"
	"talentlink/internal/observability/metrics"
	"talentlink/internal/service"
	"talentlink/internal/store"
)

const (
	resetTokenBytes   = 32
	resetRequestReply = "If that email exists, a password reset link has been sent."
	resetDoneReply    = "Password has been reset successfully. You can now login with your new password."
	emailSendTimeout  = 30 * time.Second
)

type AuthServiceImpl struct {
	Store           dataStore
	PasswordService service.PasswordService
	TService        service.TokenService
	Email           service.EmailService

	ResetTTL     time.Duration // lifetime of a password reset token
	ResetURLBase string        // e.g. https://app.example/reset-password

	now       func() time.Time
	dummyOnce sync.Once
	dummy     string
}

func NewAuthServiceImpl(st *store.Store, passwordService service.PasswordService, tokenService service.TokenService, email service.EmailService, resetTTL time.Duration, resetURLBase string) *AuthServiceImpl {
	return &AuthServiceImpl{
		Store:           gormStoreAdapter{store: st},
		PasswordService: passwordService,
		TService:        tokenService,
		Email:           email,
		ResetTTL:        resetTTL,
		ResetURLBase:    resetURLBase,
		now:             time.Now,
	}
}

type dataStore interface {
	WithTx(ctx context.Context, fn func(tx storeTx) error) error
	Users() userStore
}

type storeTx interface {
	Users() userStore
}

type userStore interface {
	Create(ctx context.Context, usr *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	TouchLastLogin(ctx context.Context, id domain.UserID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id domain.UserID, hash string) error
	SetResetToken(ctx context.Context, id domain.UserID, tokenHash string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (domain.UserID, error)
}

type gormStoreAdapter struct {
	store *store.Store
}

func (g gormStoreAdapter) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	if g.store == nil {
		return errors.New("nil store")
	}
	return g.store.WithTx(ctx, func(tx *store.Store) error {
		return fn(gormTxAdapter{tx: tx})
	})
}

func (g gormStoreAdapter) Users() userStore { return g.store.Users() }

type gormTxAdapter struct {
	tx *store.Store
}

func (g gormTxAdapter) Users() userStore { return g.tx.Users() }

func (a *AuthServiceImpl) clock() time.Time {
	if a.now == nil {
		return time.Now().UTC()
	}
	return a.now().UTC()
}

func (a *AuthServiceImpl) Register(ctx context.Context, r dto.RegisterRequest) (*dto.AuthResponse, error) {
	result := "success"
	defer func() {
		metrics.AuthRegistrationsTotal.WithLabelValues(result).Inc()
	}()

	// 1) validation
	email, err := normalizeEmail(r.Email)
	if err != nil {
		result = "invalid"
		return nil, err
	}
	username := strings.TrimSpace(r.Username)
	if n := utf8.RuneCountInString(username); n < minUsernameRunes || n > maxUsernameRunes {
		result = "invalid"
		return nil, ErrUsernameLength
	}
	if len(r.Password) < minPasswordBytes || len(r.Password) > maxPasswordBytes {
		result = "invalid"
		return nil, ErrPasswordLength
	}
	role := domain.RoleFreelancer
	if r.Role != "" {
		role = domain.Role(strings.ToLower(strings.TrimSpace(r.Role)))
		if !role.Valid() {
			result = "invalid"
			return nil, ErrInvalidRole
		}
	}

	hash, err := a.PasswordService.Hash(r.Password)
	if err != nil {
		result = "failure"
		return nil, err
	}

	// 2) single transaction: uniqueness check + insert
	var user *domain.User
	err = a.Store.WithTx(ctx, func(tx storeTx) error {
		exists, err := tx.Users().ExistsByEmailOrUsername(ctx, email, username)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrDuplicateAccount
		}
		u := &domain.User{
			Email:        email,
			Username:     username,
			PasswordHash: hash,
			Role:         role,
			CreatedAt:    a.clock(),
		}
		if err := tx.Users().Create(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.ErrDuplicateAccount // lost a race with a concurrent registration
			}
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		result = "failure"
		if errors.Is(err, domain.ErrDuplicateAccount) {
			result = "conflict"
		}
		return nil, err
	}

	token, err := a.TService.Issue(user.Email, user.ID)
	if err != nil {
		result = "failure"
		return nil, err
	}

	logging.FromContext(ctx).Info("user registered", "user_id", user.ID, "role", user.Role)
	return authResponse(token, user), nil
}

func (a *AuthServiceImpl) Login(ctx context.Context, r dto.LoginRequest) (*dto.AuthResponse, error) {
	result := "success"
	defer func() {
		metrics.AuthLoginsTotal.WithLabelValues(result).Inc()
	}()

	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		result = "invalid"
		return nil, ErrEmptyCredential
	}
	email, err := normalizeEmail(r.Email)
	if err != nil {
		result = "invalid"
		return nil, err
	}

	// 1) load user; an unknown email still pays for one hash comparison
	user, err := a.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			result = "failure"
			return nil, err
		}
		a.PasswordService.Verify(r.Password, a.dummyHash())
		result = "rejected"
		return nil, domain.ErrInvalidCredentials // don't leak which field failed
	}

	// 2) verify password (and decide if we should rehash)
	rehashNeeded, ok := a.PasswordService.Verify(r.Password, user.PasswordHash)
	if !ok {
		result = "rejected"
		return nil, domain.ErrInvalidCredentials
	}

	log := logging.FromContext(ctx)

	// 3) optional transparent rehash (policy upgrade)
	if rehashNeeded {
		if newHash, err := a.PasswordService.Hash(r.Password); err == nil {
			if err := a.Store.Users().UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
				log.Warn("password rehash not persisted", "user_id", user.ID, "error", err)
			} else {
				user.PasswordHash = newHash
			}
		}
	}

	// 4) record the login
	now := a.clock()
	if err := a.Store.Users().TouchLastLogin(ctx, user.ID, now); err != nil {
		result = "failure"
		return nil, err
	}
	user.LastLogin = &now

	token, err := a.TService.Issue(user.Email, user.ID)
	if err != nil {
		result = "failure"
		return nil, err
	}

	log.Info("user logged in", "user_id", user.ID)
	return authResponse(token, user), nil
}

func (a *AuthServiceImpl) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrAuthRequired
	}
	claims, err := a.TService.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := a.Store.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (a *AuthServiceImpl) RequestPasswordReset(ctx context.Context, r dto.ForgotPasswordRequest) (*dto.ForgotPasswordResponse, error) {
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return nil, err
	}

	raw, user, err := a.IssueResetToken(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		metrics.PasswordResetsTotal.WithLabelValues("request", "unknown").Inc()
	case err != nil:
		metrics.PasswordResetsTotal.WithLabelValues("request", "failure").Inc()
		return nil, err
	default:
		metrics.PasswordResetsTotal.WithLabelValues("request", "issued").Inc()
		a.sendResetLink(ctx, user, raw)
	}

	return &dto.ForgotPasswordResponse{Message: resetRequestReply}, nil
}

// IssueResetToken stores the hash of a fresh reset token for email and hands
// the raw token back to the in-process caller. Only the hash is persisted.
func (a *AuthServiceImpl) IssueResetToken(ctx context.Context, email string) (string, *domain.User, error) {
	user, err := a.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return "", nil, domain.ErrUserNotFound
		}
		return "", nil, err
	}

	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	expires := a.clock().Add(a.ResetTTL)
	if err := a.Store.Users().SetResetToken(ctx, user.ID, HashResetToken(raw), expires); err != nil {
		return "", nil, err
	}
	return raw, user, nil
}

// sendResetLink delivers in the background so response timing does not depend
// on whether the account exists. Failures are only logged.
func (a *AuthServiceImpl) sendResetLink(ctx context.Context, user *domain.User, raw string) {
	if a.Email == nil {
		return
	}
	log := logging.FromContext(ctx)
	link := a.resetLink(raw)
	sendCtx := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(sendCtx, emailSendTimeout)
		defer cancel()
		if err := a.Email.SendPasswordReset(ctx, user.Email, link); err != nil {
			metrics.PasswordResetsTotal.WithLabelValues("deliver", "failure").Inc()
			log.Error("password reset email failed", "user_id", user.ID, "error", err)
			return
		}
		metrics.PasswordResetsTotal.WithLabelValues("deliver", "success").Inc()
	}()
}

func (a *AuthServiceImpl) resetLink(raw string) string {
	base := a.ResetURLBase
	if base == "" {
		base = "/reset-password"
	}
	return base + "?token=" + url.QueryEscape(raw)
}

func (a *AuthServiceImpl) ResetPassword(ctx context.Context, r dto.ResetPasswordRequest) (*dto.ResetPasswordResponse, error) {
	if len(r.NewPassword) < minPasswordBytes || len(r.NewPassword) > maxPasswordBytes {
		return nil, ErrPasswordLength
	}
	if strings.TrimSpace(r.Token) == "" {
		metrics.PasswordResetsTotal.WithLabelValues("reset", "rejected").Inc()
		return nil, domain.ErrInvalidOrExpiredToken
	}

	hash, err := a.PasswordService.Hash(r.NewPassword)
	if err != nil {
		return nil, err
	}

	userID, err := a.Store.Users().ConsumeResetToken(ctx, HashResetToken(r.Token), hash, a.clock())
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			metrics.PasswordResetsTotal.WithLabelValues("reset", "rejected").Inc()
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	metrics.PasswordResetsTotal.WithLabelValues("reset", "success").Inc()
	logging.FromContext(ctx).Info("password reset completed", "user_id", userID)
	return &dto.ResetPasswordResponse{Message: resetDoneReply}, nil
}

// HashResetToken is the one-way digest stored for a raw reset token
// (64 lowercase hex characters).
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (a *AuthServiceImpl) dummyHash() string {
	a.dummyOnce.Do(func() {
		h, err := a.PasswordService.Hash("timing-equalizer-password")
		if err == nil {
			a.dummy = h
		}
	})
	return a.dummy
}

func normalizeEmail(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func authResponse(token string, u *domain.User) *dto.AuthResponse {
	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        dto.NewUserResponse(u),
	}
}
