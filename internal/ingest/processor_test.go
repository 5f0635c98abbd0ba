package ingest

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/security"
	"dropmail/backend/internal/storage/memory"
)

func newTestStore(t *testing.T) (*memory.Store, *domain.Inbox) {
	t.Helper()

	store := memory.NewStore()
	user := &domain.User{
		ID:         "user-1",
		Email:      "owner@example.com",
		IsApproved: true,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateUser(user))

	inbox := &domain.Inbox{
		ID:        "inbox-1",
		UserID:    user.ID,
		Address:   "abc123@drop.mail",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveInbox(inbox))
	return store, inbox
}

func rawMessage(to, subject, body string) string {
	return strings.Join([]string{
		"From: sender@example.com",
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
}

func TestProcessor_Process_Stored(t *testing.T) {
	store, inbox := newTestStore(t)
	processor := NewProcessor(store, nil, nil, zap.NewNop())

	raw := rawMessage("Jane Doe <ABC123@Drop.Mail>", "Hello", "body text")
	outcome, err := processor.Process(context.Background(), strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, outcome)

	emails, err := store.ListEmails(inbox.ID)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "Hello", emails[0].Subject)
	assert.Equal(t, "abc123@drop.mail", emails[0].To)
	assert.Equal(t, "body text", emails[0].TextBody)
}

func TestProcessor_Process_UnknownRecipient(t *testing.T) {
	store, _ := newTestStore(t)
	processor := NewProcessor(store, nil, nil, zap.NewNop())

	raw := rawMessage("nobody@drop.mail", "Hello", "body")
	outcome, err := processor.Process(context.Background(), strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeDroppedUnknownRecipient, outcome)
}

func TestProcessor_Process_NoRecipientHeader(t *testing.T) {
	store, _ := newTestStore(t)
	processor := NewProcessor(store, nil, nil, zap.NewNop())

	raw := strings.Join([]string{
		"From: sender@example.com",
		"Subject: no recipient",
		"",
		"body",
	}, "\r\n")
	outcome, err := processor.Process(context.Background(), strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeDroppedUnknownRecipient, outcome)
}

func TestProcessor_Process_ParseError(t *testing.T) {
	store, _ := newTestStore(t)
	processor := NewProcessor(store, nil, nil, zap.NewNop())

	outcome, err := processor.Process(context.Background(), strings.NewReader("garbage without headers"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeDroppedParseError, outcome)
}

func TestProcessor_Process_DefaultSubject(t *testing.T) {
	store, inbox := newTestStore(t)
	processor := NewProcessor(store, nil, nil, zap.NewNop())

	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: abc123@drop.mail",
		"",
		"body",
	}, "\r\n")
	outcome, err := processor.Process(context.Background(), strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, outcome)

	emails, err := store.ListEmails(inbox.ID)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, domain.DefaultSubject, emails[0].Subject)
}

func TestProcessor_Process_CapacityWithoutEviction(t *testing.T) {
	store, inbox := newTestStore(t)

	user, err := store.GetUserByID(inbox.UserID)
	require.NoError(t, err)
	user.MaxEmails = 2
	require.NoError(t, store.UpdateUser(user))

	settings := domain.DefaultSystemSettings()
	settings.DeleteOldOnLimit = false
	require.NoError(t, store.SaveSystemSettings(settings))

	// 先填满邮箱
	for i, id := range []string{"e1", "e2"} {
		require.NoError(t, store.SaveEmail(&domain.Email{
			ID:         id,
			InboxID:    inbox.ID,
			ReceivedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}))
	}

	processor := NewProcessor(store, nil, nil, zap.NewNop())
	raw := rawMessage("abc123@drop.mail", "overflow", "body")
	outcome, err := processor.Process(context.Background(), strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeDroppedCapacity, outcome)

	count, err := store.CountEmails(inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestProcessor_Process_CapacityWithEviction(t *testing.T) {
	store, inbox := newTestStore(t)

	user, err := store.GetUserByID(inbox.UserID)
	require.NoError(t, err)
	user.MaxEmails = 2
	require.NoError(t, store.UpdateUser(user))

	settings := domain.DefaultSystemSettings()
	settings.DeleteOldOnLimit = true
	require.NoError(t, store.SaveSystemSettings(settings))

	now := time.Now().UTC()
	require.NoError(t, store.SaveEmail(&domain.Email{
		ID: "oldest", InboxID: inbox.ID, ReceivedAt: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, store.SaveEmail(&domain.Email{
		ID: "newer", InboxID: inbox.ID, ReceivedAt: now.Add(-1 * time.Hour),
	}))

	processor := NewProcessor(store, nil, nil, zap.NewNop())
	raw := rawMessage("abc123@drop.mail", "incoming", "body")
	outcome, err := processor.Process(context.Background(), strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, outcome)

	count, err := store.CountEmails(inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// 最旧的被淘汰，较新的保留
	_, err = store.GetEmail("oldest")
	assert.Error(t, err)
	_, err = store.GetEmail("newer")
	assert.NoError(t, err)
}

func TestProcessor_Process_AttachmentFiltering(t *testing.T) {
	store, inbox := newTestStore(t)
	policy := &security.AttachmentPolicy{
		MaxSize:             5 * 1024 * 1024,
		AllowedTypePrefixes: security.DefaultAllowedTypePrefixes,
	}
	processor := NewProcessor(store, policy, nil, zap.NewNop())

	pdfContent := base64.StdEncoding.EncodeToString(make([]byte, 2*1024))
	bigContent := base64.StdEncoding.EncodeToString(make([]byte, 6*1024*1024))
	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: abc123@drop.mail",
		"Subject: attachments",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain",
		"",
		"body",
		"--BOUNDARY",
		"Content-Type: application/pdf",
		`Content-Disposition: attachment; filename="small.pdf"`,
		"Content-Transfer-Encoding: base64",
		"",
		pdfContent,
		"--BOUNDARY",
		"Content-Type: image/png",
		`Content-Disposition: attachment; filename="huge.png"`,
		"Content-Transfer-Encoding: base64",
		"",
		bigContent,
		"--BOUNDARY--",
		"",
	}, "\r\n")

	outcome, err := processor.Process(context.Background(), strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, outcome)

	emails, err := store.ListEmails(inbox.ID)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	require.Len(t, emails[0].Attachments, 1)
	assert.Equal(t, "small.pdf", emails[0].Attachments[0].Filename)
}

type captureNotifier struct {
	notified []*domain.Email
}

func (n *captureNotifier) NotifyNewMail(email *domain.Email) {
	n.notified = append(n.notified, email)
}

func TestProcessor_NotifierCalledOnStore(t *testing.T) {
	store, _ := newTestStore(t)
	processor := NewProcessor(store, nil, nil, zap.NewNop())

	notifier := &captureNotifier{}
	processor.SetNotifier(notifier)

	raw := rawMessage("abc123@drop.mail", "notify me", "body")
	outcome, err := processor.Process(context.Background(), strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, outcome)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, "notify me", notifier.notified[0].Subject)

	// 丢弃的邮件不触发通知
	raw = rawMessage("nobody@drop.mail", "dropped", "body")
	outcome, err = processor.Process(context.Background(), strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDroppedUnknownRecipient, outcome)
	assert.Len(t, notifier.notified, 1)
}
