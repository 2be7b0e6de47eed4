package conversation

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shadowspark/support-ai-platform/internal/ai"
	"github.com/shadowspark/support-ai-platform/internal/analytics"
	"github.com/shadowspark/support-ai-platform/internal/channels"
	"github.com/shadowspark/support-ai-platform/internal/escalation"
	"github.com/shadowspark/support-ai-platform/internal/intent"
	"github.com/shadowspark/support-ai-platform/internal/observability/metrics"
	"github.com/shadowspark/support-ai-platform/internal/tenant"
	"github.com/shadowspark/support-ai-platform/internal/transcript"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

var routerTracer = otel.Tracer("support/message-router")

// handoffKeywords matches an explicit request for a human, checked
// before any model call.
var handoffKeywords = regexp.MustCompile(`(?i)\b(agent|human|support)\b`)

// InboundMessage is one normalized message queued for processing. It is
// the queue payload, so fields carry JSON tags.
type InboundMessage struct {
	ClientID         string    `json:"client_id"`
	ChannelType      string    `json:"channel_type"`
	ChannelUserID    string    `json:"channel_user_id"`
	ChannelMessageID string    `json:"channel_message_id"`
	Text             string    `json:"text"`
	UserName         string    `json:"user_name,omitempty"`
	ReceivedAt       time.Time `json:"received_at"`
}

// ReplySender delivers an outbound reply on the user's channel.
type ReplySender interface {
	SendReply(ctx context.Context, reply channels.OutboundReply) error
}

type conversationStore interface {
	ResolveUser(ctx context.Context, channelType, channelUserID, userName string) (User, error)
	ResolveConversation(ctx context.Context, userID uuid.UUID, channel, clientID string) (uuid.UUID, error)
	SaveUserMessage(ctx context.Context, conversationID uuid.UUID, text, channelMessageID string) (uuid.UUID, bool, error)
	ClassifyMessage(ctx context.Context, messageID uuid.UUID, cls intent.Classification, priority int) error
	LoadSnapshot(ctx context.Context, conversationID uuid.UUID) (*Snapshot, error)
	SetHandoffStatus(ctx context.Context, conversationID uuid.UUID) error
	SaveAssistantMessage(ctx context.Context, conversationID uuid.UUID, text string) error
}

type clientConfigs interface {
	Get(ctx context.Context, clientID string) (*tenant.ClientConfig, error)
}

type usageGuard interface {
	CheckTokenCap(ctx context.Context, clientID string) tenant.TokenStatus
	IncrementTokenUsage(ctx context.Context, clientID string, tokens int64)
	CheckCostGuard(ctx context.Context, clientID string, estimatedCost float64) tenant.CostDecision
	IncrementCostUsage(ctx context.Context, clientID string, actualCost float64)
}

type replyGenerator interface {
	Generate(ctx context.Context, prompt ai.Prompt) ai.Result
}

type escalator interface {
	Create(ctx context.Context, conversationID uuid.UUID, queueType intent.QueueType, priority int, reason string) (*escalation.Entry, error)
	HasActive(ctx context.Context, conversationID uuid.UUID) bool
}

type usageRecorder interface {
	RecordUserMessage(ctx context.Context, event analytics.UserMessageEvent)
	RecordAIResponse(ctx context.Context, conversationID uuid.UUID, tokensUsed int64, costUsed float64)
	RecordHandoff(ctx context.Context, conversationID uuid.UUID, reason string)
}

// Router runs the full pipeline for one inbound message: identity
// resolution, dedup, classification, handoff and budget gates, model
// call, persistence and delivery.
type Router struct {
	store       conversationStore
	tenants     clientConfigs
	guard       usageGuard
	classifier  *intent.Classifier
	generator   replyGenerator
	escalations escalator
	analytics   usageRecorder
	sender      ReplySender
	transcript  *transcript.Store
	metrics     *metrics.PipelineMetrics
	logger      *logging.Logger
}

// RouterOption configures optional router collaborators.
type RouterOption func(*Router)

// WithTranscript mirrors messages into the live transcript store.
func WithTranscript(store *transcript.Store) RouterOption {
	return func(r *Router) { r.transcript = store }
}

// WithMetrics records pipeline outcomes.
func WithMetrics(m *metrics.PipelineMetrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// WithAnalytics records per-conversation aggregates.
func WithAnalytics(rec usageRecorder) RouterOption {
	return func(r *Router) { r.analytics = rec }
}

// NewRouter wires the pipeline. store, tenants, guard, generator,
// escalations and sender are required.
func NewRouter(
	store conversationStore,
	tenants clientConfigs,
	guard usageGuard,
	generator replyGenerator,
	escalations escalator,
	sender ReplySender,
	logger *logging.Logger,
	opts ...RouterOption,
) *Router {
	if store == nil {
		panic("conversation: router requires a store")
	}
	if tenants == nil {
		panic("conversation: router requires client configs")
	}
	if guard == nil {
		panic("conversation: router requires a usage guard")
	}
	if generator == nil {
		panic("conversation: router requires a generator")
	}
	if escalations == nil {
		panic("conversation: router requires an escalation store")
	}
	if sender == nil {
		panic("conversation: router requires a reply sender")
	}
	if logger == nil {
		logger = logging.Default()
	}

	r := &Router{
		store:       store,
		tenants:     tenants,
		guard:       guard,
		classifier:  intent.NewClassifier(logger),
		generator:   generator,
		escalations: escalations,
		sender:      sender,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProcessMessage handles one inbound message end to end. A returned
// error means the job should be redelivered; everything handled here,
// including model failures and budget rejections, resolves to nil.
func (r *Router) ProcessMessage(ctx context.Context, msg InboundMessage) error {
	ctx, span := routerTracer.Start(ctx, "conversation.process_message")
	defer span.End()
	span.SetAttributes(
		attribute.String("support.client_id", msg.ClientID),
		attribute.String("support.channel", msg.ChannelType),
	)

	start := time.Now()

	if msg.Text == "" {
		r.logger.Debug("skipping empty message", "channel_message_id", msg.ChannelMessageID)
		r.observeOutcome("skipped_empty")
		return nil
	}

	user, err := r.store.ResolveUser(ctx, msg.ChannelType, msg.ChannelUserID, msg.UserName)
	if err != nil {
		return fmt.Errorf("conversation: resolve user: %w", err)
	}

	conversationID, err := r.store.ResolveConversation(ctx, user.ID, msg.ChannelType, msg.ClientID)
	if err != nil {
		return fmt.Errorf("conversation: resolve conversation: %w", err)
	}
	span.SetAttributes(attribute.String("support.conversation_id", conversationID.String()))

	messageID, saved, err := r.store.SaveUserMessage(ctx, conversationID, msg.Text, msg.ChannelMessageID)
	if err != nil {
		return fmt.Errorf("conversation: save inbound: %w", err)
	}
	if !saved {
		r.logger.Info("duplicate delivery ignored",
			"conversation_id", conversationID,
			"channel_message_id", msg.ChannelMessageID)
		r.observeOutcome("duplicate")
		return nil
	}

	snapshot, err := r.store.LoadSnapshot(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: load snapshot: %w", err)
	}

	cfg, err := r.tenants.Get(ctx, msg.ClientID)
	if err != nil {
		// A missing or unreadable config never drops a customer message;
		// defaults apply and the guards fail open on their own reads.
		r.logger.Warn("client config unavailable, using defaults",
			"client_id", msg.ClientID, "error", err)
		cfg = &tenant.ClientConfig{
			ClientID:        msg.ClientID,
			SystemPrompt:    tenant.DefaultSystemPrompt,
			FallbackMessage: tenant.DefaultHandoffMessage,
		}
	}

	cls := r.classifier.Classify(ctx, msg.Text)
	score := intent.ComputePriority(cls.Intent, cls.Confidence, user.IsVIP, snapshot.UserMessageCount)
	span.SetAttributes(
		attribute.String("support.intent", string(cls.Intent)),
		attribute.Int("support.priority", score.Priority),
	)

	if err := r.store.ClassifyMessage(ctx, messageID, cls, score.Priority); err != nil {
		r.logger.Warn("failed to store classification", "message_id", messageID, "error", err)
	}
	r.appendTranscript(ctx, conversationID, transcript.Message{
		Role:     "user",
		Body:     msg.Text,
		Intent:   string(cls.Intent),
		Priority: score.Priority,
	})
	if r.analytics != nil {
		r.analytics.RecordUserMessage(ctx, analytics.UserMessageEvent{
			ConversationID: conversationID,
			ClientID:       msg.ClientID,
			Intent:         cls.Intent,
		})
	}

	if snapshot.Status != StatusActive {
		r.logger.Info("conversation not active, message stored without reply",
			"conversation_id", conversationID, "status", snapshot.Status)
		r.observeOutcome("stored_silent")
		return nil
	}

	if handoffKeywords.MatchString(msg.Text) ||
		intent.ShouldEscalate(cls.Intent, cls.Confidence) ||
		intent.RequiresHumanAttention(cls.Intent, snapshot.UserMessageCount) {
		return r.handleHandoff(ctx, msg, conversationID, cfg, cls, score)
	}

	contents := make([]string, 0, len(snapshot.Messages)+1)
	for _, m := range snapshot.Messages {
		contents = append(contents, m.Content)
	}
	contents = append(contents, cfg.SystemPrompt)
	estimate := tenant.EstimateCost(tenant.EstimateContextTokens(contents), tenant.DefaultExpectedOutputTokens)

	if decision := r.guard.CheckCostGuard(ctx, msg.ClientID, estimate.EstimatedCost); !decision.Allowed {
		r.observeOutcome("cost_limited")
		return r.replyDirect(ctx, msg, conversationID, tenant.CostLimitMessage(decision.Reason))
	}

	if status := r.guard.CheckTokenCap(ctx, msg.ClientID); status.CurrentUsage >= status.EffectiveCap() {
		r.observeOutcome("token_limited")
		return r.replyDirect(ctx, msg, conversationID, tenant.TokenLimitMessage)
	}

	result := r.generator.Generate(ctx, ai.Prompt{
		ConversationID: conversationID.String(),
		ClientID:       msg.ClientID,
		UserName:       user.Name,
		SystemPrompt:   cfg.SystemPrompt,
		Summary:        snapshot.Summary,
		History:        toChatMessages(snapshot.Messages),
	})

	if err := r.store.SaveAssistantMessage(ctx, conversationID, result.Response); err != nil {
		return fmt.Errorf("conversation: save reply: %w", err)
	}

	if !result.Fallback && result.TokensUsed > 0 {
		go r.recordUsage(msg.ClientID, conversationID, result.TokensUsed)
	}

	if err := r.sender.SendReply(ctx, channels.OutboundReply{
		ChannelUserID: msg.ChannelUserID,
		Body:          result.Response,
	}); err != nil {
		r.observeOutcome("send_failed")
		return fmt.Errorf("conversation: send reply: %w", err)
	}

	r.appendTranscript(ctx, conversationID, transcript.Message{Role: "assistant", Body: result.Response})

	outcome := "replied"
	if result.Fallback {
		outcome = "replied_fallback"
	}
	r.observeOutcome(outcome)
	if r.metrics != nil {
		r.metrics.ObserveProcessLatency(string(cls.Intent), time.Since(start).Seconds())
	}
	r.logger.Info("message processed",
		"conversation_id", conversationID,
		"intent", cls.Intent,
		"priority", score.Priority,
		"fallback", result.Fallback,
		"latency_ms", time.Since(start).Milliseconds())
	return nil
}

// handleHandoff freezes the conversation, tells the customer, and puts
// the conversation in the staffing queue exactly once.
func (r *Router) handleHandoff(
	ctx context.Context,
	msg InboundMessage,
	conversationID uuid.UUID,
	cfg *tenant.ClientConfig,
	cls intent.Classification,
	score intent.PriorityScore,
) error {
	if err := r.store.SetHandoffStatus(ctx, conversationID); err != nil {
		return fmt.Errorf("conversation: handoff: %w", err)
	}

	reason := fmt.Sprintf("intent=%s confidence=%.2f: %s", cls.Intent, cls.Confidence, score.Reason)
	if !r.escalations.HasActive(ctx, conversationID) {
		queueType := intent.QueueTypeFor(cls.Intent)
		if _, err := r.escalations.Create(ctx, conversationID, queueType, score.Priority, reason); err != nil {
			r.logger.Error("failed to create escalation",
				"conversation_id", conversationID, "error", err)
		} else if r.metrics != nil {
			r.metrics.ObserveEscalation(string(queueType))
		}
	}

	if r.analytics != nil {
		r.analytics.RecordHandoff(ctx, conversationID, reason)
	}

	r.logger.Info("conversation handed off",
		"conversation_id", conversationID,
		"intent", cls.Intent,
		"priority", score.Priority)
	r.observeOutcome("handoff")
	return r.replyDirect(ctx, msg, conversationID, cfg.FallbackMessage)
}

// replyDirect persists and sends a canned reply without a model call.
func (r *Router) replyDirect(ctx context.Context, msg InboundMessage, conversationID uuid.UUID, body string) error {
	if err := r.store.SaveAssistantMessage(ctx, conversationID, body); err != nil {
		return fmt.Errorf("conversation: save reply: %w", err)
	}
	if err := r.sender.SendReply(ctx, channels.OutboundReply{
		ChannelUserID: msg.ChannelUserID,
		Body:          body,
	}); err != nil {
		return fmt.Errorf("conversation: send reply: %w", err)
	}
	r.appendTranscript(ctx, conversationID, transcript.Message{Role: "assistant", Body: body})
	return nil
}

// recordUsage writes token and cost counters off the request path.
func (r *Router) recordUsage(clientID string, conversationID uuid.UUID, tokens int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cost := float64(tokens) * tenant.CostPerToken
	r.guard.IncrementTokenUsage(ctx, clientID, tokens)
	r.guard.IncrementCostUsage(ctx, clientID, cost)
	if r.analytics != nil {
		r.analytics.RecordAIResponse(ctx, conversationID, tokens, cost)
	}
}

func (r *Router) appendTranscript(ctx context.Context, conversationID uuid.UUID, msg transcript.Message) {
	if r.transcript == nil {
		return
	}
	if err := r.transcript.Append(ctx, conversationID.String(), msg); err != nil {
		r.logger.Warn("failed to append live transcript",
			"conversation_id", conversationID, "error", err)
	}
}

func (r *Router) observeOutcome(outcome string) {
	if r.metrics != nil {
		r.metrics.ObserveOutcome(outcome)
	}
}

func toChatMessages(messages []Message) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(messages))
	for _, m := range messages {
		role := ai.ChatRoleUser
		if m.Role == RoleAssistant {
			role = ai.ChatRoleAssistant
		}
		out = append(out, ai.ChatMessage{Role: role, Content: m.Content})
	}
	return out
}
