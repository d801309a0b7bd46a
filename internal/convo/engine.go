package convo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bot-chitieu/internal/cache"
	"bot-chitieu/internal/metrics"
	"bot-chitieu/internal/repo"
	"bot-chitieu/internal/wizard"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppGateway allows sending WhatsApp messages.
type WhatsAppGateway interface {
	SendText(ctx context.Context, to types.JID, text string) error
}

// Engine coordinates the transaction wizard over a WhatsApp conversation.
type Engine struct {
	repo     *repo.Repository
	wizard   *wizard.Wizard
	sessions *cache.SessionStore
	gateway  WhatsAppGateway
	cache    *cache.Redis
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a conversation engine instance.
func New(repository *repo.Repository, wiz *wizard.Wizard, sessions *cache.SessionStore, gateway WhatsAppGateway, cache *cache.Redis, metrics *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		repo:     repository,
		wizard:   wiz,
		sessions: sessions,
		gateway:  gateway,
		cache:    cache,
		metrics:  metrics,
		logger:   logger.With("component", "convo"),
	}
}

// ProcessMessage handles inbound WhatsApp events.
func (e *Engine) ProcessMessage(ctx context.Context, evt *events.Message) {
	if evt.Info.MessageSource.IsFromMe {
		return
	}

	msgType := detectMessageType(evt)
	e.metrics.WAIncomingMessages.WithLabelValues(msgType).Inc()

	senderJID := evt.Info.Sender
	text := extractText(evt)
	pushName := strings.TrimSpace(evt.Info.PushName)
	userProfile := repo.UserProfile{
		WAID:        senderJID.String(),
		DisplayName: optionalString(pushName),
	}

	user, err := e.repo.UpsertUserByWA(ctx, userProfile)
	if err != nil {
		e.logger.Error("failed upserting user", "error", err)
		e.metrics.Errors.WithLabelValues("upsert_user").Inc()
		return
	}

	if err := e.repo.InsertMessage(ctx, repo.MessageRecord{
		UserID:    user.ID,
		Direction: "incoming",
		Type:      msgType,
		Content:   optionalString(text),
	}); err != nil {
		e.logger.Warn("failed logging incoming message", "error", err)
	}

	if text == "" {
		e.handleNonText(ctx, evt, user)
		return
	}

	if isCancel(text) {
		if err := e.sessions.Clear(ctx, user.ID); err != nil {
			e.logger.Warn("failed clearing session", "error", err)
		}
		_ = e.respondAndLog(ctx, senderJID, user.ID, "Cancelled.", "cancel")
		return
	}

	state, err := e.sessions.Load(ctx, user.ID)
	if err != nil {
		e.logger.Error("failed loading session", "error", err)
		e.metrics.Errors.WithLabelValues("session_load").Inc()
		state = wizard.State{}
	}

	if state.Step == wizard.StepReview {
		if e.handleReviewReply(ctx, evt, user, text, state) {
			return
		}
	}

	pctx, err := e.repo.LoadParseContext(ctx, user.ID, time.Now())
	if err != nil {
		e.logger.Error("failed loading parse context", "error", err)
		e.metrics.Errors.WithLabelValues("parse_context").Inc()
		_ = e.respond(ctx, senderJID, "Something went wrong, please try again.")
		return
	}

	replies, next := e.wizard.Advance(ctx, text, state, pctx)
	e.metrics.WizardTurns.WithLabelValues(string(next.Step)).Inc()

	if err := e.sessions.Save(ctx, user.ID, next); err != nil {
		e.logger.Error("failed saving session", "error", err)
		e.metrics.Errors.WithLabelValues("session_save").Inc()
	}

	if len(replies) > 0 {
		reply := strings.Join(replies, "\n")
		if err := e.respondAndLog(ctx, senderJID, user.ID, reply, "wizard_"+string(next.Step)); err != nil {
			e.logger.Error("failed sending wizard reply", "error", err)
		}
	}
}

// handleReviewReply consumes a yes/no at the review step. Returns false when
// the reply is neither, so the turn falls through to the wizard, which
// re-shows the summary.
func (e *Engine) handleReviewReply(ctx context.Context, evt *events.Message, user *repo.User, text string, state wizard.State) bool {
	confirmed, ok := wizard.ParseConfirm(text)
	if !ok {
		return false
	}
	senderJID := evt.Info.Sender

	if !confirmed {
		// Back to free-form input; the draft rides along so the next
		// message is treated as a correction of it.
		next := wizard.State{Step: wizard.StepInput, Draft: state.Draft}
		if err := e.sessions.Save(ctx, user.ID, next); err != nil {
			e.logger.Error("failed saving session", "error", err)
		}
		_ = e.respondAndLog(ctx, senderJID, user.ID, "What would you like to change?", "review_edit")
		return true
	}

	rec := wizard.BuildBotTransactionDraft(&state.Draft)
	if rec == nil {
		e.logger.Error("confirmed draft failed assembly", "user_id", user.ID)
		e.metrics.Errors.WithLabelValues("assemble").Inc()
		if err := e.sessions.Clear(ctx, user.ID); err != nil {
			e.logger.Warn("failed clearing session", "error", err)
		}
		_ = e.respondAndLog(ctx, senderJID, user.ID, "Something went wrong, please start over.", "assemble_failed")
		return true
	}

	ref, err := e.repo.InsertBotTransaction(ctx, user.ID, *rec)
	if err != nil {
		e.logger.Error("failed storing transaction", "error", err)
		e.metrics.Errors.WithLabelValues("insert_transaction").Inc()
		_ = e.respondAndLog(ctx, senderJID, user.ID, "Could not save that, please try again.", "insert_failed")
		return true
	}
	e.metrics.Transactions.WithLabelValues(rec.Type).Inc()

	if err := e.sessions.Clear(ctx, user.ID); err != nil {
		e.logger.Warn("failed clearing session", "error", err)
	}
	reply := fmt.Sprintf("Saved. Ref: %s", ref)
	_ = e.respondAndLog(ctx, senderJID, user.ID, reply, "confirmed")
	return true
}

func (e *Engine) handleNonText(ctx context.Context, evt *events.Message, user *repo.User) {
	if !e.allowMediaReply(ctx, user.ID, detectMessageType(evt)) {
		return
	}
	reply := "I can only read text for now. Describe the transaction in a message."
	if err := e.respondAndLog(ctx, evt.Info.Sender, user.ID, reply, "non_text"); err != nil {
		e.logger.Warn("failed respond non-text", "error", err)
	}
}

func (e *Engine) respondAndLog(ctx context.Context, to types.JID, userID string, text string, category string) error {
	if err := e.respond(ctx, to, text); err != nil {
		return err
	}
	if err := e.repo.InsertMessage(ctx, repo.MessageRecord{
		UserID:    userID,
		Direction: "outgoing",
		Type:      category,
		Content:   &text,
	}); err != nil {
		e.logger.Warn("failed logging outgoing message", "error", err)
	}
	return nil
}

func (e *Engine) respond(ctx context.Context, to types.JID, text string) error {
	return e.gateway.SendText(ctx, to, text)
}

// allowMediaReply caps how often we nag a user sending media, so a burst of
// forwarded images does not trigger a burst of identical replies.
func (e *Engine) allowMediaReply(ctx context.Context, userID, mediaType string) bool {
	if e.cache == nil {
		return true
	}
	key := fmt.Sprintf("rl:media:%s:%s", mediaType, userID)
	client := e.cache.Client()
	res := client.Incr(ctx, key)
	if res.Err() != nil {
		e.logger.Warn("rate limit incr failed", "error", res.Err())
		return true
	}
	if res.Val() == 1 {
		client.Expire(ctx, key, 10*time.Minute)
	}
	return res.Val() <= 3
}

var cancelWords = map[string]bool{
	"cancel": true, "hủy": true, "huy": true, "thôi": true, "thoi": true,
	"bỏ qua": true, "bo qua": true, "/cancel": true,
}

func isCancel(text string) bool {
	return cancelWords[strings.ToLower(strings.TrimSpace(text))]
}

func detectMessageType(evt *events.Message) string {
	msg := evt.Message
	switch {
	case msg.GetConversation() != "":
		return "text"
	case msg.ExtendedTextMessage != nil:
		return "extended_text"
	case msg.ImageMessage != nil:
		return "image"
	case msg.VideoMessage != nil:
		return "video"
	case msg.AudioMessage != nil:
		return "audio"
	case msg.DocumentMessage != nil:
		return "document"
	default:
		return "unknown"
	}
}

func extractText(evt *events.Message) string {
	msg := evt.Message
	switch {
	case msg.GetConversation() != "":
		return strings.TrimSpace(msg.GetConversation())
	case msg.ExtendedTextMessage != nil:
		return strings.TrimSpace(msg.GetExtendedTextMessage().GetText())
	default:
		return ""
	}
}

func optionalString(val string) *string {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	ptr := val
	return &ptr
}
