package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSenderRequiresAPIKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "alerts@example.com"}, nil))
}

func TestNewSendGridSenderDefaultsFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "SG.test",
		FromEmail: "alerts@example.com",
	}, nil)
	require.NotNil(t, sender)
	assert.Contains(t, sender.from.Name, "ShadowSpark Support")

	custom := NewSendGridSender(SendGridConfig{
		APIKey:    "SG.test",
		FromEmail: "alerts@example.com",
		FromName:  "Support Desk",
	}, nil)
	require.NotNil(t, custom)
	assert.Equal(t, "Support Desk", custom.from.Name)
}

func TestSendGridSenderSendWithoutClientErrors(t *testing.T) {
	var sender *SendGridSender
	err := sender.Send(context.Background(), EmailMessage{To: "staff@example.com"})
	assert.Error(t, err)
}

func TestNewSESSenderRequiresClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{FromEmail: "alerts@example.com"}, nil))
}

func TestSESSenderSendWithoutClientErrors(t *testing.T) {
	var sender *SESSender
	err := sender.Send(context.Background(), EmailMessage{To: "staff@example.com"})
	assert.Error(t, err)
}

func TestStubEmailSenderSwallowsMessages(t *testing.T) {
	sender := NewStubEmailSender(nil)
	err := sender.Send(context.Background(), EmailMessage{
		To:      "staff@example.com",
		Subject: "escalation",
		Body:    "customer waiting",
	})
	assert.NoError(t, err)
}
