package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/storage/memory"
)

func seedUserWithInbox(t *testing.T, store *memory.Store, userID, address string) *domain.Inbox {
	t.Helper()

	require.NoError(t, store.CreateUser(&domain.User{
		ID:        userID,
		Email:     userID + "@example.com",
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}))
	inbox := &domain.Inbox{
		ID:        userID + "-inbox",
		UserID:    userID,
		Address:   address,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveInbox(inbox))
	return inbox
}

func TestSweeper_DeletesExpiredEmails(t *testing.T) {
	store := memory.NewStore()
	inbox := seedUserWithInbox(t, store, "user-1", "a@drop.mail")

	settings := domain.DefaultSystemSettings()
	settings.DefaultRetentionHours = 72
	require.NoError(t, store.SaveSystemSettings(settings))

	now := time.Now().UTC()
	require.NoError(t, store.SaveEmail(&domain.Email{
		ID: "expired", InboxID: inbox.ID, ReceivedAt: now.Add(-100 * time.Hour),
	}))
	require.NoError(t, store.SaveEmail(&domain.Email{
		ID: "fresh", InboxID: inbox.ID, ReceivedAt: now.Add(-1 * time.Hour),
	}))

	sweeper := NewSweeper(store, nil, zap.NewNop(), 2)
	deleted, err := sweeper.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetEmail("expired")
	assert.Error(t, err)
	_, err = store.GetEmail("fresh")
	assert.NoError(t, err)
}

func TestSweeper_UserRetentionOverride(t *testing.T) {
	store := memory.NewStore()
	inbox := seedUserWithInbox(t, store, "user-1", "a@drop.mail")

	// 用户保留时长覆盖系统默认值
	user, err := store.GetUserByID("user-1")
	require.NoError(t, err)
	hours := 1
	user.RetentionHours = &hours
	require.NoError(t, store.UpdateUser(user))

	settings := domain.DefaultSystemSettings()
	settings.DefaultRetentionHours = 72
	require.NoError(t, store.SaveSystemSettings(settings))

	now := time.Now().UTC()
	require.NoError(t, store.SaveEmail(&domain.Email{
		ID: "two-hours-old", InboxID: inbox.ID, ReceivedAt: now.Add(-2 * time.Hour),
	}))

	sweeper := NewSweeper(store, nil, zap.NewNop(), 2)
	deleted, err := sweeper.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSweeper_TrimGatedOnDeleteOldOnLimit(t *testing.T) {
	now := time.Now().UTC()

	seed := func(t *testing.T, deleteOldOnLimit bool) (*memory.Store, *domain.Inbox) {
		store := memory.NewStore()
		inbox := seedUserWithInbox(t, store, "user-1", "a@drop.mail")

		user, err := store.GetUserByID("user-1")
		require.NoError(t, err)
		user.MaxEmails = 2
		require.NoError(t, store.UpdateUser(user))

		settings := domain.DefaultSystemSettings()
		settings.DeleteOldOnLimit = deleteOldOnLimit
		require.NoError(t, store.SaveSystemSettings(settings))

		for i, id := range []string{"e1", "e2", "e3", "e4"} {
			require.NoError(t, store.SaveEmail(&domain.Email{
				ID: id, InboxID: inbox.ID, ReceivedAt: now.Add(time.Duration(i) * time.Minute),
			}))
		}
		return store, inbox
	}

	t.Run("未启用淘汰时不裁剪", func(t *testing.T) {
		store, inbox := seed(t, false)

		sweeper := NewSweeper(store, nil, zap.NewNop(), 2)
		deleted, err := sweeper.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(0), deleted)
		count, _ := store.CountEmails(inbox.ID)
		assert.Equal(t, int64(4), count)
	})

	t.Run("启用淘汰时裁剪到上限", func(t *testing.T) {
		store, inbox := seed(t, true)

		sweeper := NewSweeper(store, nil, zap.NewNop(), 2)
		deleted, err := sweeper.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
		count, _ := store.CountEmails(inbox.ID)
		assert.Equal(t, int64(2), count)

		// 最新的两封保留
		_, err = store.GetEmail("e3")
		assert.NoError(t, err)
		_, err = store.GetEmail("e4")
		assert.NoError(t, err)
	})
}

func TestSweeper_MultipleUsersIsolated(t *testing.T) {
	store := memory.NewStore()
	inboxA := seedUserWithInbox(t, store, "user-a", "a@drop.mail")
	inboxB := seedUserWithInbox(t, store, "user-b", "b@drop.mail")

	settings := domain.DefaultSystemSettings()
	settings.DefaultRetentionHours = 24
	require.NoError(t, store.SaveSystemSettings(settings))

	now := time.Now().UTC()
	require.NoError(t, store.SaveEmail(&domain.Email{
		ID: "a-expired", InboxID: inboxA.ID, ReceivedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, store.SaveEmail(&domain.Email{
		ID: "b-expired", InboxID: inboxB.ID, ReceivedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, store.SaveEmail(&domain.Email{
		ID: "b-fresh", InboxID: inboxB.ID, ReceivedAt: now,
	}))

	sweeper := NewSweeper(store, nil, zap.NewNop(), 2)
	deleted, err := sweeper.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	_, err = store.GetEmail("b-fresh")
	assert.NoError(t, err)
}

// blockingStore 在 ListUsers 处阻塞，用于构造重入场景
type blockingStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) ListUsers() ([]domain.User, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Store.ListUsers()
}

func TestSweeper_RejectsOverlappingRuns(t *testing.T) {
	store := &blockingStore{
		Store:   memory.NewStore(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	sweeper := NewSweeper(store, nil, zap.NewNop(), 2)

	done := make(chan error, 1)
	go func() {
		_, err := sweeper.Run(context.Background())
		done <- err
	}()

	// 等第一轮进入执行中，再发起第二轮
	<-store.entered
	_, err := sweeper.Run(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(store.release)
	require.NoError(t, <-done)

	// 第一轮结束后可以再次执行
	_, err = sweeper.Run(context.Background())
	assert.NoError(t, err)
}

// failingStore 对指定用户的邮箱列表查询返回错误
type failingStore struct {
	*memory.Store
	failUserID string
}

func (s *failingStore) ListInboxesByUserID(userID string) ([]domain.Inbox, error) {
	if userID == s.failUserID {
		return nil, errors.New("storage unavailable")
	}
	return s.Store.ListInboxesByUserID(userID)
}

func TestSweeper_UserFailureDoesNotAffectOthers(t *testing.T) {
	base := memory.NewStore()
	inboxGood := seedUserWithInbox(t, base, "user-good", "good@drop.mail")
	seedUserWithInbox(t, base, "user-bad", "bad@drop.mail")

	settings := domain.DefaultSystemSettings()
	settings.DefaultRetentionHours = 24
	require.NoError(t, base.SaveSystemSettings(settings))

	require.NoError(t, base.SaveEmail(&domain.Email{
		ID: "good-expired", InboxID: inboxGood.ID, ReceivedAt: time.Now().UTC().Add(-48 * time.Hour),
	}))

	store := &failingStore{Store: base, failUserID: "user-bad"}
	sweeper := NewSweeper(store, nil, zap.NewNop(), 2)

	deleted, err := sweeper.Run(context.Background())

	// 单用户失败不上抛，正常用户照常清理
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSweeper_CancelledContext(t *testing.T) {
	store := memory.NewStore()
	seedUserWithInbox(t, store, "user-1", "a@drop.mail")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweeper := NewSweeper(store, nil, zap.NewNop(), 2)
	_, err := sweeper.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
