package tgclient

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
	"github.com/samber/lo"

	"github.com/openclaw/tg-relay-go/internal/model"
)

const (
	dialogBatchSize = 100

	// Channel ids are shifted into their own negative range so that users,
	// basic groups and channels never collide.
	channelIDOffset = 1_000_000_000_000
)

// Dialog is one conversation in the account's dialog list.
type Dialog struct {
	ID          int64
	Title       string
	Type        string
	MemberCount *int

	channel *tg.InputChannel
}

// HasParticipantList reports whether Participants can be called for d.
func (d Dialog) HasParticipantList() bool {
	return d.channel != nil
}

type Participant struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

type ParticipantPage struct {
	Participants []Participant
	Total        int
}

// MarkedChannelID returns the dialog id of a channel.
func MarkedChannelID(channelID int64) int64 {
	return -(channelIDOffset + channelID)
}

func (c *conn) Dialogs(ctx context.Context) ([]Dialog, error) {
	req := &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      dialogBatchSize,
	}

	var out []Dialog
	for len(out) < c.maxDialogs {
		resp, err := c.api.MessagesGetDialogs(ctx, req)
		if err != nil {
			return nil, err
		}

		page, err := unpackDialogs(resp)
		if err != nil {
			return nil, err
		}
		out = append(out, page.convert()...)

		if page.complete || len(page.dialogs) < dialogBatchSize {
			break
		}

		next, ok := page.nextOffset()
		if !ok {
			break
		}
		req.OffsetDate = next.date
		req.OffsetID = next.id
		req.OffsetPeer = next.peer
	}

	if len(out) > c.maxDialogs {
		out = out[:c.maxDialogs]
	}
	return out, nil
}

func (c *conn) Participants(ctx context.Context, dialog Dialog, limit int) (*ParticipantPage, error) {
	if dialog.channel == nil {
		return nil, ErrNoParticipantList
	}

	resp, err := c.api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
		Channel: dialog.channel,
		Filter:  &tg.ChannelParticipantsSearch{Q: ""},
		Offset:  0,
		Limit:   limit,
		Hash:    0,
	})
	if err != nil {
		return nil, err
	}

	switch r := resp.(type) {
	case *tg.ChannelsChannelParticipants:
		return &ParticipantPage{
			Participants: toParticipants(r.Users),
			Total:        r.Count,
		}, nil
	default:
		return nil, fmt.Errorf("%w: participants returned %T", ErrUnexpectedResponse, resp)
	}
}

func toParticipants(users []tg.UserClass) []Participant {
	return lo.FilterMap(users, func(u tg.UserClass, _ int) (Participant, bool) {
		user, ok := u.(*tg.User)
		if !ok {
			return Participant{}, false
		}
		return Participant{
			ID:        user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		}, true
	})
}

type dialogPage struct {
	dialogs  []tg.DialogClass
	messages []tg.MessageClass
	users    map[int64]*tg.User
	chats    map[int64]tg.ChatClass
	complete bool
}

func unpackDialogs(resp tg.MessagesDialogsClass) (*dialogPage, error) {
	switch d := resp.(type) {
	case *tg.MessagesDialogs:
		return newDialogPage(d.Dialogs, d.Messages, d.Chats, d.Users, true), nil
	case *tg.MessagesDialogsSlice:
		return newDialogPage(d.Dialogs, d.Messages, d.Chats, d.Users, false), nil
	case *tg.MessagesDialogsNotModified:
		return &dialogPage{complete: true}, nil
	default:
		return nil, fmt.Errorf("%w: dialogs returned %T", ErrUnexpectedResponse, resp)
	}
}

func newDialogPage(dialogs []tg.DialogClass, messages []tg.MessageClass, chats []tg.ChatClass, users []tg.UserClass, complete bool) *dialogPage {
	p := &dialogPage{
		dialogs:  dialogs,
		messages: messages,
		users:    make(map[int64]*tg.User, len(users)),
		chats:    make(map[int64]tg.ChatClass, len(chats)),
		complete: complete,
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			p.users[user.ID] = user
		}
	}
	for _, c := range chats {
		p.chats[c.GetID()] = c
	}
	return p
}

func (p *dialogPage) convert() []Dialog {
	out := make([]Dialog, 0, len(p.dialogs))
	for _, raw := range p.dialogs {
		dlg, ok := raw.(*tg.Dialog)
		if !ok {
			continue
		}
		if d, ok := p.dialogFor(dlg.Peer); ok {
			out = append(out, d)
		}
	}
	return out
}

func (p *dialogPage) dialogFor(peer tg.PeerClass) (Dialog, bool) {
	switch pr := peer.(type) {
	case *tg.PeerUser:
		d := Dialog{ID: pr.UserID, Type: model.ConversationTypeUser}
		if u, ok := p.users[pr.UserID]; ok {
			d.Title = model.DisplayName(u.FirstName, u.LastName)
		}
		return d, true

	case *tg.PeerChat:
		d := Dialog{ID: -pr.ChatID, Type: model.ConversationTypeChat}
		switch c := p.chats[pr.ChatID].(type) {
		case *tg.Chat:
			d.Title = c.Title
			d.MemberCount = lo.ToPtr(c.ParticipantsCount)
		case *tg.ChatForbidden:
			d.Title = c.Title
			d.Type = model.ConversationTypeChatForbidden
		}
		return d, true

	case *tg.PeerChannel:
		d := Dialog{ID: MarkedChannelID(pr.ChannelID), Type: model.ConversationTypeChannel}
		switch c := p.chats[pr.ChannelID].(type) {
		case *tg.Channel:
			d.Title = c.Title
			if n, ok := c.GetParticipantsCount(); ok {
				d.MemberCount = lo.ToPtr(n)
			}
			d.channel = &tg.InputChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
		case *tg.ChannelForbidden:
			d.Title = c.Title
			d.Type = model.ConversationTypeChannelForbidden
		}
		return d, true
	}
	return Dialog{}, false
}

type dialogOffset struct {
	date int
	id   int
	peer tg.InputPeerClass
}

// nextOffset derives the getDialogs offset from the last dialog of the page.
func (p *dialogPage) nextOffset() (dialogOffset, bool) {
	for i := len(p.dialogs) - 1; i >= 0; i-- {
		dlg, ok := p.dialogs[i].(*tg.Dialog)
		if !ok {
			continue
		}

		peer, ok := p.inputPeer(dlg.Peer)
		if !ok {
			return dialogOffset{}, false
		}
		return dialogOffset{
			date: p.messageDate(dlg.Peer, dlg.TopMessage),
			id:   dlg.TopMessage,
			peer: peer,
		}, true
	}
	return dialogOffset{}, false
}

func (p *dialogPage) inputPeer(peer tg.PeerClass) (tg.InputPeerClass, bool) {
	switch pr := peer.(type) {
	case *tg.PeerUser:
		u, ok := p.users[pr.UserID]
		if !ok {
			return nil, false
		}
		return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, true
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: pr.ChatID}, true
	case *tg.PeerChannel:
		switch c := p.chats[pr.ChannelID].(type) {
		case *tg.Channel:
			return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}, true
		case *tg.ChannelForbidden:
			return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}, true
		}
	}
	return nil, false
}

func (p *dialogPage) messageDate(peer tg.PeerClass, id int) int {
	for _, raw := range p.messages {
		var (
			msgID   int
			msgPeer tg.PeerClass
			date    int
		)
		switch m := raw.(type) {
		case *tg.Message:
			msgID, msgPeer, date = m.ID, m.PeerID, m.Date
		case *tg.MessageService:
			msgID, msgPeer, date = m.ID, m.PeerID, m.Date
		default:
			continue
		}
		if msgID == id && samePeer(msgPeer, peer) {
			return date
		}
	}
	return 0
}

func samePeer(a, b tg.PeerClass) bool {
	switch x := a.(type) {
	case *tg.PeerUser:
		y, ok := b.(*tg.PeerUser)
		return ok && x.UserID == y.UserID
	case *tg.PeerChat:
		y, ok := b.(*tg.PeerChat)
		return ok && x.ChatID == y.ChatID
	case *tg.PeerChannel:
		y, ok := b.(*tg.PeerChannel)
		return ok && x.ChannelID == y.ChannelID
	}
	return false
}
