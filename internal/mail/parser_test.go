package mail

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PlainText(t *testing.T) {
	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: inbox@drop.mail",
		"Subject: Hello",
		"",
		"plain body",
	}, "\r\n")

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "sender@example.com", parsed.From)
	assert.Equal(t, "inbox@drop.mail", parsed.To)
	assert.Equal(t, "Hello", parsed.Subject)
	assert.Equal(t, "plain body", parsed.Text)
	assert.Empty(t, parsed.HTML)
	assert.Empty(t, parsed.Attachments)
}

func TestParse_EncodedSubject(t *testing.T) {
	subject := "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte("你好，世界")) + "?="
	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: inbox@drop.mail",
		"Subject: " + subject,
		"",
		"body",
	}, "\r\n")

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "你好，世界", parsed.Subject)
}

func TestParse_MultipartWithAttachment(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte("attachment payload"))
	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: inbox@drop.mail",
		"Subject: with attachment",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"text part",
		"--BOUNDARY",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html part</p>",
		"--BOUNDARY",
		"Content-Type: application/pdf",
		`Content-Disposition: attachment; filename="report.pdf"`,
		"Content-Transfer-Encoding: base64",
		"",
		content,
		"--BOUNDARY--",
		"",
	}, "\r\n")

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "text part", strings.TrimRight(parsed.Text, "\r\n"))
	assert.Equal(t, "<p>html part</p>", strings.TrimRight(parsed.HTML, "\r\n"))
	require.Len(t, parsed.Attachments, 1)

	att := parsed.Attachments[0]
	assert.Equal(t, "report.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, []byte("attachment payload"), att.Content)
	assert.Equal(t, int64(len("attachment payload")), att.Size)
	assert.NotEmpty(t, att.ID)
}

func TestParse_QuotedPrintableBody(t *testing.T) {
	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: inbox@drop.mail",
		"Subject: qp",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"caf=C3=A9",
	}, "\r\n")

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "café", parsed.Text)
}

func TestParse_HTMLOnly(t *testing.T) {
	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: inbox@drop.mail",
		"Subject: html",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<h1>hi</h1>",
	}, "\r\n")

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", parsed.HTML)
	assert.Empty(t, parsed.Text)
}

func TestParse_InvalidMessage(t *testing.T) {
	_, err := Parse([]byte("not an rfc822 message"))
	assert.Error(t, err)
}
