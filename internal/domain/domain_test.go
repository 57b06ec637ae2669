package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLabel(t *testing.T) {
	for _, l := range AllLabels() {
		parsed, ok := ParseLabel(string(l))
		assert.True(t, ok)
		assert.Equal(t, l, parsed)
	}

	for _, s := range []string{"", "interested", "INTERESTED", "Promotional", "Meeting  Booked"} {
		_, ok := ParseLabel(s)
		assert.False(t, ok, "%q must not parse", s)
	}
}

func TestShouldNotify(t *testing.T) {
	base := Message{Label: LabelInterested, RealTime: true}

	msg := base
	assert.True(t, ShouldNotify(&msg))

	msg = base
	msg.RealTime = false
	assert.False(t, ShouldNotify(&msg), "backfilled mail never notifies")

	for _, l := range []Label{LabelMeetingBooked, LabelNotInterested, LabelSpam, LabelOutOfOffice, LabelUnknown} {
		msg = base
		msg.Label = l
		assert.False(t, ShouldNotify(&msg), "label %s must not notify", l)
	}
}

func TestAccountValidate(t *testing.T) {
	valid := Account{
		ID:       "a@example.com",
		Host:     "imap.example.com",
		Port:     993,
		Username: "a@example.com",
		Password: "secret",
		UseTLS:   true,
	}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "imap.example.com:993", valid.Addr())

	tests := []struct {
		name   string
		mutate func(*Account)
	}{
		{"缺少ID", func(a *Account) { a.ID = "" }},
		{"缺少host", func(a *Account) { a.Host = "" }},
		{"端口为0", func(a *Account) { a.Port = 0 }},
		{"端口越界", func(a *Account) { a.Port = 70000 }},
		{"缺少用户名", func(a *Account) { a.Username = "" }},
		{"缺少密码", func(a *Account) { a.Password = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			assert.Error(t, a.Validate())
		})
	}
}

func TestSearchQueryFilters(t *testing.T) {
	q := SearchQuery{Account: "a@example.com", Folder: "INBOX"}
	assert.Equal(t, "a@example.com", q.AccountFilter())
	assert.Equal(t, "INBOX", q.FolderFilter())

	q = SearchQuery{Account: FilterAll, Folder: FilterAll}
	assert.Empty(t, q.AccountFilter())
	assert.Empty(t, q.FolderFilter())

	q = SearchQuery{}
	assert.Empty(t, q.AccountFilter())
	assert.Empty(t, q.FolderFilter())
}

func TestNotificationEventFromMessage(t *testing.T) {
	msg := &Message{
		Account: "me@example.com",
		From:    "alice@example.com",
		Subject: "Hello",
		Date:    time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
		Text:    "body",
	}

	event := NotificationEventFromMessage("evt-1", msg)
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, msg.Account, event.Account)
	assert.Equal(t, msg.From, event.From)
	assert.Equal(t, msg.Subject, event.Subject)
	assert.Equal(t, msg.Date, event.Date)
	assert.Equal(t, msg.Text, event.Text)
	assert.False(t, event.Timestamp.IsZero())
}
