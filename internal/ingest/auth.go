package ingest

import (
	"crypto/subtle"
	"strings"

	"github.com/mediavault/mediavault/internal/config"
)

// SecretHeader carries the secret token set through setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// AuthGuard checks the webhook secret and that a bot credential is configured.
type AuthGuard struct {
	secret   string
	botToken string
}

// NewAuthGuard captures the credentials once; the guard never reads the environment.
func NewAuthGuard(cfg config.TelegramConfig) *AuthGuard {
	return &AuthGuard{
		secret:   strings.TrimSpace(cfg.WebhookSecret),
		botToken: strings.TrimSpace(cfg.BotToken),
	}
}

// Authorize fails closed: an unset secret rejects every call. The secret is
// checked before the bot token.
func (g *AuthGuard) Authorize(header string) error {
	if g == nil || g.secret == "" || header == "" {
		return ErrInvalidWebhookSecret
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(g.secret)) != 1 {
		return ErrInvalidWebhookSecret
	}
	if g.botToken == "" {
		return ErrMissingBotToken
	}
	return nil
}
