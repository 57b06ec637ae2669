package mailparse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onebox/backend/internal/domain"
)

const simpleMessage = "From: Alice <alice@example.com>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Quick question\r\n" +
	"Date: Mon, 01 Sep 2025 10:00:00 +0000\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"We are interested in a demo.\r\n"

func TestParse_SimpleMessage(t *testing.T) {
	msg, err := Parse([]byte(simpleMessage), "me@example.com", "INBOX")
	require.NoError(t, err)

	assert.Equal(t, "Quick question", msg.Subject)
	assert.Contains(t, msg.From, "alice@example.com")
	assert.Contains(t, msg.To, "me@example.com")
	assert.Equal(t, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC), msg.Date.UTC())
	assert.Contains(t, msg.Text, "We are interested in a demo.")
	assert.Empty(t, msg.HTML)
	assert.Equal(t, "me@example.com", msg.Account)
	assert.Equal(t, "INBOX", msg.Folder)
	assert.NotEmpty(t, msg.MessageID)
	assert.Empty(t, msg.Label, "label is assigned by the classification stage")
}

func TestParse_MultipartMessage(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: me@example.com\r\n" +
		"Subject: Multipart\r\n" +
		"Date: Mon, 01 Sep 2025 10:00:00 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--BOUNDARY--\r\n"

	msg, err := Parse([]byte(raw), "me@example.com", "INBOX")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "plain body")
	assert.Contains(t, msg.HTML, "<p>html body</p>")
}

func TestParse_Deterministic(t *testing.T) {
	first, err := Parse([]byte(simpleMessage), "me@example.com", "INBOX")
	require.NoError(t, err)
	second, err := Parse([]byte(simpleMessage), "me@example.com", "INBOX")
	require.NoError(t, err)

	// Re-fetching the same message yields the same document ID
	assert.Equal(t, first.MessageID, second.MessageID)

	// A different account must not collide
	other, err := Parse([]byte(simpleMessage), "other@example.com", "INBOX")
	require.NoError(t, err)
	assert.NotEqual(t, first.MessageID, other.MessageID)
}

func TestParse_MissingHeaders(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: me@example.com\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"no subject, no date, no message-id\r\n"

	before := time.Now().Add(-time.Minute)
	msg, err := Parse([]byte(raw), "me@example.com", "INBOX")
	require.NoError(t, err)

	assert.Equal(t, "(No Subject)", msg.Subject)
	assert.True(t, msg.Date.After(before), "missing date defaults to now")
	assert.NotEmpty(t, msg.MessageID, "id is derived from from/subject/date when the header is missing")
}

func TestParse_GarbageIsParseError(t *testing.T) {
	_, err := Parse([]byte("this is not a header line\r\n\r\nbody"), "me@example.com", "INBOX")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrParse))
}

func TestDeriveMessageID_Fallback(t *testing.T) {
	date := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	withHeader := domain.DeriveMessageID("a", "<id@example.com>", "f", "s", date)
	withoutHeader := domain.DeriveMessageID("a", "", "f", "s", date)
	assert.NotEqual(t, withHeader, withoutHeader)

	// Fallback is stable for identical inputs
	assert.Equal(t, withoutHeader, domain.DeriveMessageID("a", "", "f", "s", date))

	// Fallback changes when any component changes
	assert.NotEqual(t, withoutHeader, domain.DeriveMessageID("a", "", "f", "s2", date))
	assert.NotEqual(t, withoutHeader, domain.DeriveMessageID("a", "", "f", "s", date.Add(time.Second)))
}
