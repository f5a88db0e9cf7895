package tgclient

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/tg-relay-go/internal/model"
)

func testDialogs() *tg.MessagesDialogsSlice {
	channel := &tg.Channel{ID: 77, AccessHash: 9001, Title: "News"}
	channel.SetParticipantsCount(1200)

	return &tg.MessagesDialogsSlice{
		Count: 500,
		Dialogs: []tg.DialogClass{
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 77}, TopMessage: 10},
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 5}, TopMessage: 11},
			&tg.Dialog{Peer: &tg.PeerChat{ChatID: 3}, TopMessage: 12},
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 88}, TopMessage: 13},
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 6}, TopMessage: 14},
		},
		Messages: []tg.MessageClass{
			&tg.Message{ID: 10, PeerID: &tg.PeerChannel{ChannelID: 77}, Date: 1000},
			&tg.Message{ID: 14, PeerID: &tg.PeerUser{UserID: 99}, Date: 111},
			&tg.Message{ID: 14, PeerID: &tg.PeerUser{UserID: 6}, Date: 1400},
		},
		Chats: []tg.ChatClass{
			channel,
			&tg.Chat{ID: 3, Title: "Family", ParticipantsCount: 4},
			&tg.ChannelForbidden{ID: 88, AccessHash: 1, Title: "Gone"},
		},
		Users: []tg.UserClass{
			&tg.User{ID: 5, AccessHash: 55, FirstName: "Ana"},
			&tg.User{ID: 6, AccessHash: 66},
		},
	}
}

func TestDialogPageConvert(t *testing.T) {
	page, err := unpackDialogs(testDialogs())
	require.NoError(t, err)
	assert.False(t, page.complete)

	dialogs := page.convert()
	require.Len(t, dialogs, 5)

	assert.Equal(t, MarkedChannelID(77), dialogs[0].ID)
	assert.Equal(t, int64(-1_000_000_000_077), dialogs[0].ID)
	assert.Equal(t, "News", dialogs[0].Title)
	assert.Equal(t, model.ConversationTypeChannel, dialogs[0].Type)
	require.NotNil(t, dialogs[0].MemberCount)
	assert.Equal(t, 1200, *dialogs[0].MemberCount)
	assert.True(t, dialogs[0].HasParticipantList())

	assert.Equal(t, int64(5), dialogs[1].ID)
	assert.Equal(t, "Ana", dialogs[1].Title)
	assert.Equal(t, model.ConversationTypeUser, dialogs[1].Type)
	assert.Nil(t, dialogs[1].MemberCount)
	assert.False(t, dialogs[1].HasParticipantList())

	assert.Equal(t, int64(-3), dialogs[2].ID)
	assert.Equal(t, "Family", dialogs[2].Title)
	assert.Equal(t, model.ConversationTypeChat, dialogs[2].Type)
	assert.Equal(t, 4, *dialogs[2].MemberCount)
	assert.False(t, dialogs[2].HasParticipantList())

	assert.Equal(t, model.ConversationTypeChannelForbidden, dialogs[3].Type)
	assert.False(t, dialogs[3].HasParticipantList())

	assert.Equal(t, "", dialogs[4].Title)
}

func TestDialogPageNextOffset(t *testing.T) {
	page, err := unpackDialogs(testDialogs())
	require.NoError(t, err)

	next, ok := page.nextOffset()
	require.True(t, ok)
	assert.Equal(t, 14, next.id)
	assert.Equal(t, 1400, next.date)
	assert.Equal(t, &tg.InputPeerUser{UserID: 6, AccessHash: 66}, next.peer)
}

func TestUnpackDialogs(t *testing.T) {
	t.Run("full list is complete", func(t *testing.T) {
		page, err := unpackDialogs(&tg.MessagesDialogs{})
		require.NoError(t, err)
		assert.True(t, page.complete)
		assert.Empty(t, page.convert())
	})

	t.Run("not modified is complete and empty", func(t *testing.T) {
		page, err := unpackDialogs(&tg.MessagesDialogsNotModified{Count: 3})
		require.NoError(t, err)
		assert.True(t, page.complete)
		assert.Empty(t, page.convert())
	})

	t.Run("folders are skipped", func(t *testing.T) {
		page, err := unpackDialogs(&tg.MessagesDialogs{
			Dialogs: []tg.DialogClass{&tg.DialogFolder{}},
		})
		require.NoError(t, err)
		assert.Empty(t, page.convert())

		_, ok := page.nextOffset()
		assert.False(t, ok)
	})
}

func TestToParticipants(t *testing.T) {
	out := toParticipants([]tg.UserClass{
		&tg.User{ID: 1, Username: "ana", FirstName: "Ana"},
		&tg.UserEmpty{ID: 2},
		&tg.User{ID: 3, LastName: "Silva"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, Participant{ID: 1, Username: "ana", FirstName: "Ana"}, out[0])
	assert.Equal(t, Participant{ID: 3, LastName: "Silva"}, out[1])
}
