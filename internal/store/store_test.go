package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"talentlink/internal/domain"
	"talentlink/internal/store"
	"talentlink/pkg/db"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return st
}

func seedUser(t *testing.T, st *store.Store, username string) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "hash",
		Role:         domain.RoleFreelancer,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func seedMessage(t *testing.T, st *store.Store, from, to domain.UserID, content string, at time.Time) *domain.Message {
	t.Helper()
	m := &domain.Message{SenderID: from, ReceiverID: to, Content: content, CreatedAt: at}
	if err := st.Messages().Create(context.Background(), m); err != nil {
		t.Fatalf("create message: %v", err)
	}
	return m
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	st := setupStore(t)
	seedUser(t, st, "alice")

	dup := &domain.User{Email: "alice@example.com", Username: "alice2", PasswordHash: "x", Role: domain.RoleClient, CreatedAt: time.Now().UTC()}
	err := st.Users().Create(context.Background(), dup)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	st := setupStore(t)
	if _, err := st.Users().GetByID(context.Background(), 999); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestUserSearchExcludesSelfAndEscapesWildcards(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice")
	seedUser(t, st, "Alicia")
	seedUser(t, st, "bob")
	seedUser(t, st, "al_x")

	got, err := st.Users().Search(ctx, "ALI", alice.ID, 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Username != "Alicia" {
		t.Fatalf("unexpected search result: %+v", got)
	}

	got, err = st.Users().Search(ctx, "l_", alice.ID, 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Username != "al_x" {
		t.Fatalf("underscore must match literally, got %+v", got)
	}
}

func TestConsumeResetTokenIsSingleUse(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	u := seedUser(t, st, "carol")
	now := time.Now().UTC()

	if err := st.Users().SetResetToken(ctx, u.ID, "abc123", now.Add(time.Hour)); err != nil {
		t.Fatalf("set reset token: %v", err)
	}

	id, err := st.Users().ConsumeResetToken(ctx, "abc123", "new-hash", now)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if id != u.ID {
		t.Fatalf("consumed for wrong user: %d", id)
	}

	if _, err := st.Users().ConsumeResetToken(ctx, "abc123", "other-hash", now); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}

	got, err := st.Users().GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PasswordHash != "new-hash" || got.ResetTokenHash != nil || got.ResetTokenExpires != nil {
		t.Fatalf("reset fields not cleared: %+v", got)
	}
}

func TestConsumeResetTokenRejectsExpired(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	u := seedUser(t, st, "dave")
	now := time.Now().UTC()

	if err := st.Users().SetResetToken(ctx, u.ID, "expired", now.Add(-time.Minute)); err != nil {
		t.Fatalf("set reset token: %v", err)
	}
	if _, err := st.Users().ConsumeResetToken(ctx, "expired", "h", now); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestLastPerPartnerBreaksTimestampTiesByID(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	carol := seedUser(t, st, "carol")

	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedMessage(t, st, alice.ID, bob.ID, "first", t0)
	seedMessage(t, st, bob.ID, alice.ID, "tie-a", t0.Add(time.Second))
	last := seedMessage(t, st, alice.ID, bob.ID, "tie-b", t0.Add(time.Second))
	seedMessage(t, st, carol.ID, alice.ID, "hi alice", t0)

	msgs, err := st.Messages().LastPerPartner(ctx, alice.ID)
	if err != nil {
		t.Fatalf("last per partner: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(msgs))
	}
	byPartner := map[domain.UserID]domain.Message{}
	for _, m := range msgs {
		partner := m.SenderID
		if partner == alice.ID {
			partner = m.ReceiverID
		}
		byPartner[partner] = m
	}
	if byPartner[bob.ID].ID != last.ID || byPartner[bob.ID].Content != "tie-b" {
		t.Fatalf("expected highest id among tied timestamps, got %+v", byPartner[bob.ID])
	}
	if byPartner[carol.ID].Content != "hi alice" {
		t.Fatalf("unexpected carol thread: %+v", byPartner[carol.ID])
	}
}

func TestMarkReadAndUnreadCounts(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	carol := seedUser(t, st, "carol")
	now := time.Now().UTC()

	seedMessage(t, st, alice.ID, bob.ID, "one", now)
	seedMessage(t, st, alice.ID, bob.ID, "two", now)
	seedMessage(t, st, carol.ID, bob.ID, "three", now)
	seedMessage(t, st, bob.ID, alice.ID, "reply", now)

	n, err := st.Messages().UnreadCount(ctx, bob.ID)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 unread, got %d (%v)", n, err)
	}
	bySender, err := st.Messages().UnreadBySender(ctx, bob.ID)
	if err != nil {
		t.Fatalf("unread by sender: %v", err)
	}
	if bySender[alice.ID] != 2 || bySender[carol.ID] != 1 {
		t.Fatalf("unexpected grouping: %+v", bySender)
	}

	changed, err := st.Messages().MarkRead(ctx, bob.ID, alice.ID)
	if err != nil || changed != 2 {
		t.Fatalf("expected 2 rows marked, got %d (%v)", changed, err)
	}
	changed, err = st.Messages().MarkRead(ctx, bob.ID, alice.ID)
	if err != nil || changed != 0 {
		t.Fatalf("second mark should be a no-op, got %d (%v)", changed, err)
	}

	n, _ = st.Messages().UnreadCount(ctx, bob.ID)
	if n != 1 {
		t.Fatalf("expected 1 unread after mark, got %d", n)
	}
	n, _ = st.Messages().UnreadCount(ctx, alice.ID)
	if n != 1 {
		t.Fatalf("bob's reply must remain unread for alice, got %d", n)
	}
}

func TestConversationOrderAndPaging(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	carol := seedUser(t, st, "carol")
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seedMessage(t, st, alice.ID, bob.ID, "m1", t0)
	seedMessage(t, st, bob.ID, alice.ID, "m2", t0.Add(time.Minute))
	seedMessage(t, st, alice.ID, carol.ID, "other", t0.Add(2*time.Minute))
	seedMessage(t, st, alice.ID, bob.ID, "m3", t0.Add(3*time.Minute))

	msgs, err := st.Messages().Conversation(ctx, bob.ID, alice.ID, 0, 50)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Content != "m1" || msgs[2].Content != "m3" {
		t.Fatalf("unexpected conversation: %+v", msgs)
	}

	page, err := st.Messages().Conversation(ctx, alice.ID, bob.ID, 1, 1)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 1 || page[0].Content != "m2" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestMessagesRequireExistingUsers(t *testing.T) {
	dsn := db.SQLiteDSN("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st := store.New(gdb)
	ctx := context.Background()
	if err := st.AutoMigrate(ctx); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	alice := seedUser(t, st, "alice")

	cases := []struct {
		name     string
		from, to domain.UserID
	}{
		{"unknown receiver", alice.ID, alice.ID + 100},
		{"unknown sender", alice.ID + 100, alice.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &domain.Message{SenderID: tc.from, ReceiverID: tc.to, Content: "hi", CreatedAt: time.Now().UTC()}
			if err := st.Messages().Create(ctx, m); !errors.Is(err, store.ErrMissingRef) {
				t.Fatalf("expected ErrMissingRef, got %v", err)
			}
		})
	}

	bob := seedUser(t, st, "bob")
	seedMessage(t, st, alice.ID, bob.ID, "hello", time.Now().UTC())
}
