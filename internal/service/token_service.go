package service

import "time"

type Claims struct {
	Subject   string
	UserID    uint
	ExpiresAt time.Time
}

type TokenService interface {
	Issue(subject string, userID uint) (token string, err error)
	Verify(token string) (*Claims, error)
}
