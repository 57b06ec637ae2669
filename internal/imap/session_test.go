package imap

import (
	"testing"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/stretchr/testify/assert"
)

func TestNextRange(t *testing.T) {
	tests := []struct {
		name     string
		last     uint32
		total    uint32
		wantFrom uint32
		wantTo   uint32
		wantOK   bool
	}{
		{name: "single new message", last: 10, total: 11, wantFrom: 11, wantTo: 11, wantOK: true},
		{name: "burst of new messages", last: 10, total: 15, wantFrom: 11, wantTo: 15, wantOK: true},
		{name: "empty mailbox to first message", last: 0, total: 1, wantFrom: 1, wantTo: 1, wantOK: true},
		{name: "no change", last: 10, total: 10, wantOK: false},
		{name: "count decreased after expunge", last: 10, total: 8, wantOK: false},
		{name: "both zero", last: 0, total: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, ok := nextRange(tt.last, tt.total)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantFrom, from)
				assert.Equal(t, tt.wantTo, to)
			}
		})
	}
}

// 连续两次抓取的区间不得重叠、不得跳号。
func TestNextRange_ConsecutiveRangesDoNotOverlap(t *testing.T) {
	last := uint32(5)
	totals := []uint32{7, 8, 12, 12, 20}

	prevTo := last
	for _, total := range totals {
		from, to, ok := nextRange(last, total)
		if !ok {
			continue
		}
		assert.Equal(t, prevTo+1, from, "next range must start right after the previous one")
		assert.Equal(t, total, to)
		prevTo = to
		last = total
	}
}

func TestDrainUpdates(t *testing.T) {
	updates := make(chan client.Update, 8)

	updates <- &client.MailboxUpdate{Mailbox: &imap.MailboxStatus{Messages: 12}}
	updates <- &client.MailboxUpdate{Mailbox: &imap.MailboxStatus{Messages: 15}}
	updates <- &client.ExpungeUpdate{SeqNum: 3}
	updates <- &client.MailboxUpdate{Mailbox: &imap.MailboxStatus{Messages: 14}}

	// Takes the highest observed total; lower totals and other update kinds are ignored
	assert.Equal(t, uint32(15), drainUpdates(updates, 10))

	// Empty channel returns the current value unchanged
	assert.Equal(t, uint32(15), drainUpdates(updates, 15))
}

func TestDrainUpdates_NilMailbox(t *testing.T) {
	updates := make(chan client.Update, 2)
	updates <- &client.MailboxUpdate{Mailbox: nil}

	assert.Equal(t, uint32(7), drainUpdates(updates, 7))
}
