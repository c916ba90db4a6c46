package impl

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"talentlink/internal/domain"
	"talentlink/internal/dto"
	"talentlink/internal/service"
	"talentlink/internal/store"

	"golang.org/x/crypto/bcrypt"
)

type stubPasswordService struct {
	rehash bool

	mu          sync.Mutex
	hashCalls   []string
	verifyCalls []struct {
		password string
		hash     string
	}
}

func (s *stubPasswordService) Hash(password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashCalls = append(s.hashCalls, password)
	return "hashed:" + password, nil
}

func (s *stubPasswordService) Verify(password, hash string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifyCalls = append(s.verifyCalls, struct {
		password string
		hash     string
	}{password, hash})
	if hash != "hashed:"+password {
		return false, false
	}
	return s.rehash, true
}

type stubTokenService struct {
	verifyClaims *service.Claims
	verifyErr    error

	issueCalls []struct {
		subject string
		userID  uint
	}
}

func (s *stubTokenService) Issue(subject string, userID uint) (string, error) {
	s.issueCalls = append(s.issueCalls, struct {
		subject string
		userID  uint
	}{subject, userID})
	return "token-for-" + subject, nil
}

func (s *stubTokenService) Verify(string) (*service.Claims, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.verifyClaims, nil
}

type stubEmail struct {
	sent chan [2]string
	err  error
}

func newStubEmail() *stubEmail { return &stubEmail{sent: make(chan [2]string, 4)} }

func (s *stubEmail) SendPasswordReset(_ context.Context, to, link string) error {
	s.sent <- [2]string{to, link}
	return s.err
}

type memoryStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*domain.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[uint]*domain.User)}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	m.mu.Lock()
	snapshot := make(map[uint]*domain.User, len(m.users))
	for id, u := range m.users {
		cp := *u
		snapshot[id] = &cp
	}
	m.mu.Unlock()

	if err := fn(memoryTx{store: m}); err != nil {
		m.mu.Lock()
		m.users = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryStore) Users() userStore { return &memoryUserStore{store: m} }

func (m *memoryStore) user(id uint) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

type memoryTx struct {
	store *memoryStore
}

func (m memoryTx) Users() userStore { return &memoryUserStore{store: m.store} }

type memoryUserStore struct {
	store *memoryStore
}

func (s *memoryUserStore) Create(_ context.Context, usr *domain.User) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for _, u := range s.store.users {
		if u.Email == usr.Email || u.Username == usr.Username {
			return store.ErrDuplicate
		}
	}
	s.store.nextID++
	usr.ID = s.store.nextID
	cp := *usr
	s.store.users[usr.ID] = &cp
	return nil
}

func (s *memoryUserStore) GetByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	if u := s.store.user(id); u != nil {
		return u, nil
	}
	return nil, store.ErrRecordNotFound
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for _, u := range s.store.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrRecordNotFound
}

func (s *memoryUserStore) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for _, u := range s.store.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryUserStore) TouchLastLogin(_ context.Context, id domain.UserID, at time.Time) error {
	return s.update(id, func(u *domain.User) { u.LastLogin = &at })
}

func (s *memoryUserStore) UpdatePasswordHash(_ context.Context, id domain.UserID, hash string) error {
	return s.update(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (s *memoryUserStore) SetResetToken(_ context.Context, id domain.UserID, tokenHash string, expires time.Time) error {
	return s.update(id, func(u *domain.User) {
		u.ResetTokenHash = &tokenHash
		u.ResetTokenExpires = &expires
	})
}

func (s *memoryUserStore) ConsumeResetToken(_ context.Context, tokenHash, newPasswordHash string, now time.Time) (domain.UserID, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for _, u := range s.store.users {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash {
			continue
		}
		if u.ResetTokenExpires == nil || !now.Before(*u.ResetTokenExpires) {
			return 0, store.ErrRecordNotFound
		}
		u.PasswordHash = newPasswordHash
		u.ResetTokenHash = nil
		u.ResetTokenExpires = nil
		return u.ID, nil
	}
	return 0, store.ErrRecordNotFound
}

func (s *memoryUserStore) update(id domain.UserID, fn func(*domain.User)) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	u, ok := s.store.users[id]
	if !ok {
		return store.ErrRecordNotFound
	}
	fn(u)
	return nil
}

type fixture struct {
	svc   *AuthServiceImpl
	store *memoryStore
	pw    *stubPasswordService
	ts    *stubTokenService
	email *stubEmail
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemoryStore(),
		pw:    &stubPasswordService{},
		ts:    &stubTokenService{},
		email: newStubEmail(),
		now:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = &AuthServiceImpl{
		Store:           f.store,
		PasswordService: f.pw,
		TService:        f.ts,
		Email:           f.email,
		ResetTTL:        24 * time.Hour,
		ResetURLBase:    "https://app.example/reset-password",
		now:             func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) register(t *testing.T, username string) *dto.AuthResponse {
	t.Helper()
	res, err := f.svc.Register(context.Background(), dto.RegisterRequest{
		Email:    username + "@example.com",
		Username: username,
		Password: "secret-" + username,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return res
}

func TestRegisterStoresHashAndIssuesToken(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "alice")

	if res.AccessToken != "token-for-alice@example.com" || res.TokenType != "bearer" {
		t.Fatalf("unexpected auth response: %+v", res)
	}
	if res.User.Role != string(domain.RoleFreelancer) {
		t.Fatalf("default role = %q", res.User.Role)
	}
	stored := f.store.user(res.User.ID)
	if stored == nil {
		t.Fatal("user not persisted")
	}
	if stored.PasswordHash == "secret-alice" || stored.PasswordHash != "hashed:secret-alice" {
		t.Fatalf("password stored as %q", stored.PasswordHash)
	}
	if len(f.ts.issueCalls) != 1 || f.ts.issueCalls[0].userID != res.User.ID {
		t.Fatalf("token issue calls = %+v", f.ts.issueCalls)
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Register(context.Background(), dto.RegisterRequest{
		Email: "  Alice@Example.COM ", Username: "alice", Password: "longenough", Role: "Client",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.User.Email != "alice@example.com" || res.User.Role != "client" {
		t.Fatalf("got %+v", res.User)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	for _, req := range []dto.RegisterRequest{
		{Email: "alice@example.com", Username: "other", Password: "longenough"},
		{Email: "other@example.com", Username: "alice", Password: "longenough"},
	} {
		_, err := f.svc.Register(context.Background(), req)
		if !errors.Is(err, domain.ErrDuplicateAccount) {
			t.Fatalf("register %+v: got %v, want ErrDuplicateAccount", req, err)
		}
	}
	if len(f.store.users) != 1 {
		t.Fatalf("users = %d, want 1", len(f.store.users))
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		req  dto.RegisterRequest
		want error
	}{
		{"bad email", dto.RegisterRequest{Email: "nope", Username: "alice", Password: "longenough"}, ErrInvalidEmail},
		{"short username", dto.RegisterRequest{Email: "a@example.com", Username: "al", Password: "longenough"}, ErrUsernameLength},
		{"short password", dto.RegisterRequest{Email: "a@example.com", Username: "alice", Password: "short"}, ErrPasswordLength},
		{"long password", dto.RegisterRequest{Email: "a@example.com", Username: "alice", Password: strings.Repeat("p", 73)}, ErrPasswordLength},
		{"bad role", dto.RegisterRequest{Email: "a@example.com", Username: "alice", Password: "longenough", Role: "admin"}, ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Register(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if domain.KindOf(err) != domain.KindValidation {
				t.Fatalf("kind = %v", domain.KindOf(err))
			}
		})
	}
}

func TestLoginFailuresShareOneError(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	_, wrongPw := f.svc.Login(context.Background(), dto.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	_, unknown := f.svc.Login(context.Background(), dto.LoginRequest{Email: "ghost@example.com", Password: "wrong-password"})

	if !errors.Is(wrongPw, domain.ErrInvalidCredentials) || !errors.Is(unknown, domain.ErrInvalidCredentials) {
		t.Fatalf("got %v / %v", wrongPw, unknown)
	}
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPw, unknown)
	}
	// Both branches compare a password hash.
	if len(f.pw.verifyCalls) != 2 {
		t.Fatalf("verify calls = %d, want 2", len(f.pw.verifyCalls))
	}
}

func TestLoginRecordsLastLoginAndRehashes(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "alice")
	f.pw.rehash = true
	f.now = f.now.Add(time.Hour)

	res, err := f.svc.Login(context.Background(), dto.LoginRequest{Email: "alice@example.com", Password: "secret-alice"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.User.LastLogin == nil || !res.User.LastLogin.Equal(f.now) {
		t.Fatalf("last_login = %v", res.User.LastLogin)
	}
	stored := f.store.user(reg.User.ID)
	if stored.LastLogin == nil || !stored.LastLogin.Equal(f.now) {
		t.Fatalf("stored last_login = %v", stored.LastLogin)
	}
	if n := len(f.pw.hashCalls); n != 2 {
		t.Fatalf("hash calls = %d, want register + rehash", n)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "alice")

	f.ts.verifyClaims = &service.Claims{Subject: "alice@example.com", UserID: reg.User.ID}
	u, err := f.svc.Authenticate(context.Background(), "tok")
	if err != nil || u.ID != reg.User.ID {
		t.Fatalf("authenticate: %v %+v", err, u)
	}

	f.ts.verifyClaims = &service.Claims{Subject: "gone@example.com", UserID: 999}
	if _, err := f.svc.Authenticate(context.Background(), "tok"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("deleted user: got %v", err)
	}

	f.ts.verifyErr = domain.ErrTokenExpired
	if _, err := f.svc.Authenticate(context.Background(), "tok"); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expired: got %v", err)
	}

	if _, err := f.svc.Authenticate(context.Background(), "  "); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("empty: got %v", err)
	}
}

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestPasswordResetRoundTrip(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "alice")
	ctx := context.Background()

	raw, user, err := f.svc.IssueResetToken(ctx, "alice@example.com")
	if err != nil || user.ID != reg.User.ID {
		t.Fatalf("issue: %v", err)
	}
	stored := f.store.user(reg.User.ID)
	if stored.ResetTokenHash == nil || !hex64.MatchString(*stored.ResetTokenHash) {
		t.Fatalf("stored reset hash = %v", stored.ResetTokenHash)
	}
	if *stored.ResetTokenHash == raw {
		t.Fatal("raw token persisted")
	}
	if want := f.now.Add(24 * time.Hour); !stored.ResetTokenExpires.Equal(want) {
		t.Fatalf("expiry = %v, want %v", stored.ResetTokenExpires, want)
	}

	res, err := f.svc.ResetPassword(ctx, dto.ResetPasswordRequest{Token: raw, NewPassword: "new-password"})
	if err != nil || res.Message != resetDoneReply {
		t.Fatalf("reset: %v %+v", err, res)
	}
	stored = f.store.user(reg.User.ID)
	if stored.PasswordHash != "hashed:new-password" || stored.ResetTokenHash != nil || stored.ResetTokenExpires != nil {
		t.Fatalf("after reset: %+v", stored)
	}

	if _, err := f.svc.ResetPassword(ctx, dto.ResetPasswordRequest{Token: raw, NewPassword: "again-password"}); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("reuse: got %v", err)
	}

	if _, err := f.svc.Login(ctx, dto.LoginRequest{Email: "alice@example.com", Password: "secret-alice"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password: got %v", err)
	}
	if _, err := f.svc.Login(ctx, dto.LoginRequest{Email: "alice@example.com", Password: "new-password"}); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestPasswordResetExpired(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	raw, _, err := f.svc.IssueResetToken(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	f.now = f.now.Add(24*time.Hour + time.Second)
	_, err = f.svc.ResetPassword(context.Background(), dto.ResetPasswordRequest{Token: raw, NewPassword: "new-password"})
	if !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("got %v", err)
	}
}

func TestRequestPasswordResetIsUniform(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	f.email.err = errors.New("smtp down")

	known, err := f.svc.RequestPasswordReset(context.Background(), dto.ForgotPasswordRequest{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("known: %v", err)
	}
	unknown, err := f.svc.RequestPasswordReset(context.Background(), dto.ForgotPasswordRequest{Email: "ghost@example.com"})
	if err != nil {
		t.Fatalf("unknown: %v", err)
	}
	if *known != *unknown || known.Message != resetRequestReply {
		t.Fatalf("replies differ: %+v vs %+v", known, unknown)
	}

	select {
	case sent := <-f.email.sent:
		if sent[0] != "alice@example.com" || !strings.HasPrefix(sent[1], "https://app.example/reset-password?token=") {
			t.Fatalf("sent = %v", sent)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reset mail")
	}
	select {
	case sent := <-f.email.sent:
		t.Fatalf("unexpected mail %v", sent)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResetPasswordRejectsBlankToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ResetPassword(context.Background(), dto.ResetPasswordRequest{Token: " ", NewPassword: "long-enough"})
	if !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("got %v", err)
	}
	_, err = f.svc.ResetPassword(context.Background(), dto.ResetPasswordRequest{Token: "x", NewPassword: "short"})
	if !errors.Is(err, ErrPasswordLength) {
		t.Fatalf("got %v", err)
	}
}

func TestBcryptPasswordService(t *testing.T) {
	pw := NewPasswordServiceBcrypt(bcrypt.MinCost)
	hash, err := pw.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("hash = %q", hash)
	}
	if rehash, ok := pw.Verify("correct horse", hash); !ok || rehash {
		t.Fatalf("verify = rehash:%v ok:%v", rehash, ok)
	}
	if _, ok := pw.Verify("wrong", hash); ok {
		t.Fatal("wrong password verified")
	}

	stronger := NewPasswordServiceBcrypt(bcrypt.MinCost + 1)
	if rehash, ok := stronger.Verify("correct horse", hash); !ok || !rehash {
		t.Fatalf("cost upgrade: rehash:%v ok:%v", rehash, ok)
	}
	if _, err := pw.Hash(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordLength) {
		t.Fatalf("long password: %v", err)
	}
}

func TestHashResetToken(t *testing.T) {
	h := HashResetToken("abc")
	if !hex64.MatchString(h) || h == HashResetToken("abd") {
		t.Fatalf("hash = %q", h)
	}
}
