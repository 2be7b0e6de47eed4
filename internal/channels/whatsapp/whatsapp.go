// Package whatsapp adapts Twilio's WhatsApp Business webhooks and REST
// API to the channels contract.
package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shadowspark/support-ai-platform/internal/channels"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
	"github.com/shadowspark/support-ai-platform/pkg/retry"
)

var tracer = otel.Tracer("support/whatsapp")

// addressPrefix is how Twilio namespaces WhatsApp numbers.
const addressPrefix = "whatsapp:"

// Twilio caps WhatsApp bodies at 1600 characters. Long replies are
// split on the last paragraph break found in the first 1400 chars,
// otherwise on a hard cut, so each chunk reads as a complete message.
const (
	maxChunkLen        = 1600
	paragraphSearchLen = 1400
	hardCutLen         = 1500
)

// ErrInvalidSignature is returned when a webhook fails Twilio's
// signature check.
var ErrInvalidSignature = errors.New("whatsapp: invalid twilio signature")

// Config wires the Twilio account used for WhatsApp.
type Config struct {
	AccountSID  string
	AuthToken   string
	From        string // e.g. "whatsapp:+14155238886"
	WebhookURL  string // public URL Twilio signs requests against
	ValidateSig bool
	MaxAttempts int
	RetryBase   time.Duration
}

// Adapter implements channels.Adapter over Twilio's WhatsApp API.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	logger     *logging.Logger
}

// NewAdapter builds a WhatsApp adapter.
func NewAdapter(cfg Config, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

var _ channels.Adapter = (*Adapter)(nil)

// Type reports the channel identifier.
func (a *Adapter) Type() string { return channels.TypeWhatsApp }

// Parse validates the Twilio signature and normalizes the webhook form.
func (a *Adapter) Parse(r *http.Request) (*channels.NormalizedMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("whatsapp: parse form: %w", err)
	}
	if a.cfg.ValidateSig && !a.validSignature(r) {
		return nil, ErrInvalidSignature
	}

	body := strings.TrimSpace(r.FormValue("Body"))
	from := strings.TrimPrefix(r.FormValue("From"), addressPrefix)
	msg := &channels.NormalizedMessage{
		ChannelType:      channels.TypeWhatsApp,
		ChannelUserID:    from,
		ChannelMessageID: r.FormValue("MessageSid"),
		Text:             body,
		UserName:         r.FormValue("ProfileName"),
		Timestamp:        time.Now().UTC(),
		RawPayload: map[string]string{
			"account_sid": r.FormValue("AccountSid"),
			"to":          r.FormValue("To"),
			"num_media":   r.FormValue("NumMedia"),
		},
	}
	if msg.ChannelUserID == "" {
		return nil, errors.New("whatsapp: webhook missing From")
	}
	if msg.ChannelMessageID == "" {
		return nil, errors.New("whatsapp: webhook missing MessageSid")
	}
	return msg, nil
}

func (a *Adapter) validSignature(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	payload := signaturePayload(a.cfg.WebhookURL, r.PostForm)
	mac := hmac.New(sha1.New, []byte(a.cfg.AuthToken))
	mac.Write([]byte(payload))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// signaturePayload concatenates the webhook URL with the form params
// sorted by key, per Twilio's signing scheme.
func signaturePayload(webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

// SendReply delivers a reply, chunking long bodies and retrying
// transient Twilio failures per chunk.
func (a *Adapter) SendReply(ctx context.Context, reply channels.OutboundReply) error {
	if a.cfg.AccountSID == "" || a.cfg.AuthToken == "" {
		return errors.New("whatsapp: twilio credentials missing")
	}
	if reply.ChannelUserID == "" {
		return errors.New("whatsapp: recipient required")
	}
	if strings.TrimSpace(reply.Body) == "" {
		return errors.New("whatsapp: body required")
	}

	ctx, span := tracer.Start(ctx, "whatsapp.send")
	defer span.End()
	span.SetAttributes(attribute.String("support.channel_user_id", reply.ChannelUserID))

	chunks := SplitMessage(reply.Body)
	span.SetAttributes(attribute.Int("support.chunks", len(chunks)))

	for i, chunk := range chunks {
		if err := a.sendChunk(ctx, reply.ChannelUserID, chunk); err != nil {
			span.RecordError(err)
			return fmt.Errorf("whatsapp: chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	a.logger.Info("whatsapp reply sent", "to", reply.ChannelUserID, "chunks", len(chunks))
	return nil
}

func (a *Adapter) sendChunk(ctx context.Context, to, body string) error {
	payload := url.Values{}
	payload.Set("To", addressPrefix+strings.TrimPrefix(to, addressPrefix))
	payload.Set("From", a.cfg.From)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", a.cfg.AccountSID)

	retries := a.cfg.MaxAttempts - 1
	if retries == 0 {
		retries = retry.NoRetries
	}
	_, err := retry.Do(ctx, retry.Options{
		MaxRetries: retries,
		BaseDelay:  a.cfg.RetryBase,
		Operation:  "whatsapp send",
		Logger:     a.logger,
	}, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			return struct{}{}, err
		}
		req.SetBasicAuth(a.cfg.AccountSID, a.cfg.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return struct{}{}, nil
		}
		return struct{}{}, &retry.StatusError{
			StatusCode: resp.StatusCode,
			Message:    formatTwilioError(resp.StatusCode, raw),
		}
	})
	return err
}

// SplitMessage breaks a body into chunks Twilio will accept. Bodies at
// or under the cap go out as-is; longer bodies split at the last
// paragraph break within the search window, falling back to a hard cut.
func SplitMessage(body string) []string {
	if len(body) <= maxChunkLen {
		return []string{body}
	}

	var chunks []string
	rest := body
	for len(rest) > maxChunkLen {
		cut := strings.LastIndex(rest[:paragraphSearchLen], "\n\n")
		if cut <= 0 {
			cut = hardCutLen
		}
		chunks = append(chunks, strings.TrimSpace(rest[:cut]))
		rest = strings.TrimSpace(rest[cut:])
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
