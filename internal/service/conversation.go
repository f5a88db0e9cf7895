package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/openclaw/tg-relay-go/internal/metrics"
	"github.com/openclaw/tg-relay-go/internal/model"
	"github.com/openclaw/tg-relay-go/internal/tgclient"
)

// ConversationAggregator lists an account's dialogs together with a bounded
// preview of each dialog's members.
type ConversationAggregator struct {
	previewLimit int
	metrics      *metrics.Metrics
}

func NewConversationAggregator(previewLimit int, m *metrics.Metrics) *ConversationAggregator {
	return &ConversationAggregator{
		previewLimit: previewLimit,
		metrics:      m,
	}
}

// List returns one summary per dialog in the order the platform reports
// them. A failed member preview only empties that dialog's preview; a failed
// dialog enumeration fails the whole call.
func (a *ConversationAggregator) List(ctx context.Context, conn tgclient.Conn) ([]model.ConversationSummary, error) {
	dialogs, err := conn.Dialogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dialogs: %w", err)
	}

	out := make([]model.ConversationSummary, 0, len(dialogs))
	for _, d := range dialogs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, a.summarize(ctx, conn, d))
	}

	log.Debug().
		Int("conversations", len(out)).
		Msg("conversations listed")

	return out, nil
}

func (a *ConversationAggregator) summarize(ctx context.Context, conn tgclient.Conn, d tgclient.Dialog) model.ConversationSummary {
	summary := model.ConversationSummary{
		ID:             d.ID,
		Title:          d.Title,
		Type:           d.Type,
		MembersPreview: []model.ParticipantSummary{},
		MemberCount:    d.MemberCount,
	}
	if summary.Title == "" {
		summary.Title = model.UntitledConversation
	}

	page, err := conn.Participants(ctx, d, a.previewLimit)
	if err != nil {
		if !errors.Is(err, tgclient.ErrNoParticipantList) {
			a.metrics.PreviewFailureInc()
			log.Debug().
				Err(err).
				Int64("conversationId", d.ID).
				Str("type", d.Type).
				Msg("member preview unavailable")
		}
		return summary
	}

	members := page.Participants
	if len(members) > a.previewLimit {
		members = members[:a.previewLimit]
	}
	summary.MembersPreview = lo.Map(members, func(p tgclient.Participant, _ int) model.ParticipantSummary {
		return toParticipantSummary(p)
	})

	if summary.MemberCount == nil && page.Total > 0 {
		summary.MemberCount = lo.ToPtr(page.Total)
	}
	return summary
}

func toParticipantSummary(p tgclient.Participant) model.ParticipantSummary {
	return model.ParticipantSummary{
		ID:       p.ID,
		Username: lo.EmptyableToPtr(p.Username),
		Name:     model.DisplayName(p.FirstName, p.LastName),
	}
}
