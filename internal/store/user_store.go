package store

import (
	"context"
	"strings"
	"time"

	"talentlink/internal/domain"

	"gorm.io/gorm"
)

type UserStore struct{ db *gorm.DB }

func (s *Store) Users() *UserStore { return &UserStore{db: s.DB} }

func (u *UserStore) Create(ctx context.Context, usr *domain.User) error {
	return translate(u.db.WithContext(ctx).Create(usr).Error)
}

func (u *UserStore) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (u *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (u *UserStore) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var n int64
	err := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&n).Error
	return n > 0, translate(err)
}

func (u *UserStore) ListByIDs(ctx context.Context, ids []domain.UserID) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []domain.User
	if err := u.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err)
	}
	return users, nil
}

// Search matches usernames containing query, case-insensitively, with LIKE
// wildcards in query treated literally.
func (u *UserStore) Search(ctx context.Context, query string, exclude domain.UserID, limit, offset int) ([]domain.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var users []domain.User
	err := u.db.WithContext(ctx).
		Where("id <> ?", exclude).
		Where(`LOWER(username) LIKE ? ESCAPE '\'`, pattern).
		Order("username asc").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, translate(err)
	}
	return users, nil
}

func (u *UserStore) TouchLastLogin(ctx context.Context, id domain.UserID, at time.Time) error {
	return translate(u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error)
}

func (u *UserStore) UpdatePasswordHash(ctx context.Context, id domain.UserID, hash string) error {
	return translate(u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Update("password_hash", hash).Error)
}

func (u *UserStore) SetResetToken(ctx context.Context, id domain.UserID, tokenHash string, expires time.Time) error {
	return translate(u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_token_hash":    tokenHash,
			"reset_token_expires": expires,
		}).Error)
}

// ConsumeResetToken swaps in newPasswordHash and clears the reset fields in a
// single conditional UPDATE, so a token is consumed at most once even when
// submitted concurrently.
func (u *UserStore) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (domain.UserID, error) {
	var user domain.User
	err := u.db.WithContext(ctx).
		Where("reset_token_hash = ? AND reset_token_expires > ?", tokenHash, now).
		First(&user).Error
	if err != nil {
		return 0, translate(err)
	}
	res := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND reset_token_hash = ? AND reset_token_expires > ?", user.ID, tokenHash, now).
		Updates(map[string]any{
			"password_hash":       newPasswordHash,
			"reset_token_hash":    nil,
			"reset_token_expires": nil,
		})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrRecordNotFound
	}
	return user.ID, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
