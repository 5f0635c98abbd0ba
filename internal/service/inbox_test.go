package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropmail/backend/internal/config"
	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/storage"
	"dropmail/backend/internal/storage/memory"
)

func newInboxService(t *testing.T) (*InboxService, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	require.NoError(t, store.CreateUser(&domain.User{
		ID:         "user-1",
		Email:      "user@example.com",
		IsActive:   true,
		IsApproved: true,
		MaxInboxes: 3,
		CreatedAt:  time.Now().UTC(),
	}))

	cfg := &config.Config{
		Mail: config.MailConfig{
			AllowedDomains: []string{"drop.mail", "temp.example"},
		},
	}
	return NewInboxService(store, cfg), store
}

func TestInboxService_Create(t *testing.T) {
	t.Run("随机前缀创建成功", func(t *testing.T) {
		service, _ := newInboxService(t)

		inbox, err := service.Create(CreateInboxInput{UserID: "user-1"})

		require.NoError(t, err)
		assert.NotEmpty(t, inbox.ID)
		assert.Equal(t, "user-1", inbox.UserID)
		assert.Contains(t, inbox.Address, "@drop.mail")
	})

	t.Run("自定义前缀", func(t *testing.T) {
		service, _ := newInboxService(t)

		inbox, err := service.Create(CreateInboxInput{
			UserID:    "user-1",
			LocalPart: "my.custom_name-1",
		})

		require.NoError(t, err)
		assert.Equal(t, "my.custom_name-1@drop.mail", inbox.Address)
	})

	t.Run("指定域名", func(t *testing.T) {
		service, _ := newInboxService(t)

		inbox, err := service.Create(CreateInboxInput{
			UserID: "user-1",
			Domain: "temp.example",
		})

		require.NoError(t, err)
		assert.Contains(t, inbox.Address, "@temp.example")
	})

	t.Run("域名不在允许列表", func(t *testing.T) {
		service, _ := newInboxService(t)

		_, err := service.Create(CreateInboxInput{
			UserID: "user-1",
			Domain: "evil.com",
		})

		assert.ErrorIs(t, err, ErrDomainNotAllowed)
	})

	t.Run("非法前缀", func(t *testing.T) {
		service, _ := newInboxService(t)

		for _, prefix := range []string{"has space", "中文", "bad!char", "with@at"} {
			_, err := service.Create(CreateInboxInput{
				UserID:    "user-1",
				LocalPart: prefix,
			})
			assert.ErrorIs(t, err, ErrLocalPartInvalid, "prefix: %s", prefix)
		}
	})

	t.Run("自定义前缀冲突返回 ErrAddressTaken", func(t *testing.T) {
		service, _ := newInboxService(t)

		_, err := service.Create(CreateInboxInput{UserID: "user-1", LocalPart: "taken"})
		require.NoError(t, err)

		_, err = service.Create(CreateInboxInput{UserID: "user-1", LocalPart: "taken"})
		assert.ErrorIs(t, err, storage.ErrAddressTaken)
	})

	t.Run("达到数量上限", func(t *testing.T) {
		service, _ := newInboxService(t)

		for i := 0; i < 3; i++ {
			_, err := service.Create(CreateInboxInput{UserID: "user-1"})
			require.NoError(t, err)
		}

		_, err := service.Create(CreateInboxInput{UserID: "user-1"})
		assert.ErrorIs(t, err, ErrInboxLimitReached)
	})

	t.Run("用户不存在", func(t *testing.T) {
		service, _ := newInboxService(t)

		_, err := service.Create(CreateInboxInput{UserID: "nobody"})
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}

func TestInboxService_Ownership(t *testing.T) {
	service, store := newInboxService(t)

	require.NoError(t, store.CreateUser(&domain.User{
		ID:        "user-2",
		Email:     "other@example.com",
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}))

	inbox, err := service.Create(CreateInboxInput{UserID: "user-1"})
	require.NoError(t, err)

	t.Run("所有者可以读取", func(t *testing.T) {
		got, err := service.Get("user-1", inbox.ID)
		require.NoError(t, err)
		assert.Equal(t, inbox.Address, got.Address)
	})

	t.Run("非所有者读取返回 ErrNotOwner", func(t *testing.T) {
		_, err := service.Get("user-2", inbox.ID)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("非所有者删除返回 ErrNotOwner", func(t *testing.T) {
		err := service.Delete("user-2", inbox.ID)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("所有者删除级联清理邮件", func(t *testing.T) {
		require.NoError(t, store.SaveEmail(&domain.Email{
			ID: "e1", InboxID: inbox.ID, ReceivedAt: time.Now().UTC(),
		}))

		require.NoError(t, service.Delete("user-1", inbox.ID))

		_, err := store.GetInbox(inbox.ID)
		assert.ErrorIs(t, err, storage.ErrInboxNotFound)
		_, err = store.GetEmail("e1")
		assert.ErrorIs(t, err, storage.ErrMessageNotFound)
	})
}
