package impl

import (
	"errors"
	"log/slog"
	"time"

	"talentlink/internal/domain"
	"talentlink/internal/observability/metrics"
	"talentlink/internal/service"

	"github.com/golang-jwt/jwt/v5"
)

type TokenConfig struct {
	AccessTTL  time.Duration // e.g. 30 * time.Minute
	SigningKey []byte        // HS256 secret
}

// SessionClaims is the session token payload: sub carries the email and
// user_id the numeric account id.
type SessionClaims struct {
	UserID *uint `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

type TokenServiceImpl struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenServiceHS256(cfg TokenConfig) *TokenServiceImpl {
	return &TokenServiceImpl{cfg: cfg, now: time.Now}
}

func (t *TokenServiceImpl) Issue(subject string, userID uint) (string, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("issue", result).Inc()
	}()

	now := t.now().UTC()
	id := userID
	claims := SessionClaims{
		UserID: &id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.SigningKey)
	if err != nil {
		result = "failure"
		return "", err
	}
	return signed, nil
}

func (t *TokenServiceImpl) Verify(tokenStr string) (*service.Claims, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("verify", result).Inc()
	}()

	claims := &SessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.cfg.SigningKey, nil
	})
	if err != nil {
		result = "failure"
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		slog.Debug("session token rejected", "error", err)
		return nil, domain.ErrInvalidToken
	}
	if claims.UserID == nil || *claims.UserID == 0 {
		result = "failure"
		return nil, domain.ErrMalformedClaims
	}

	out := &service.Claims{Subject: claims.Subject, UserID: *claims.UserID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
