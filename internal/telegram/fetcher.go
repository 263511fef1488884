package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/mediavault/internal/config"
	"github.com/mediavault/mediavault/internal/media"
)

const maxAPIResponseBytes int64 = 1 << 20

// Download is a fetched file.
type Download struct {
	Data []byte
	// FilePath is the provider-side path returned by getFile; its suffix is the file extension.
	FilePath    string
	ContentType string
}

// Fetcher resolves file ids through the Bot API getFile method and downloads the binary.
// It never retries.
type Fetcher struct {
	bot          *tgbotapi.BotAPI
	client       *http.Client
	token        string
	fileEndpoint string
	maxBytes     int64
	logger       *slog.Logger
}

// NewFetcher creates a fetcher from the Telegram config section. A nil client gets
// one with the configured download timeout.
func NewFetcher(log *slog.Logger, cfg config.TelegramConfig, client *http.Client) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		timeout := cfg.DownloadTimeout()
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	apiEndpoint := strings.TrimSpace(cfg.APIEndpoint)
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	fileEndpoint := strings.TrimSpace(cfg.FileEndpoint)
	if fileEndpoint == "" {
		fileEndpoint = tgbotapi.FileEndpoint
	}
	maxBytes := cfg.MaxDownloadBytes
	if maxBytes <= 0 {
		maxBytes = media.MaxAssetBytes
	}
	// The struct literal skips the getMe call tgbotapi.NewBotAPI makes.
	bot := &tgbotapi.BotAPI{Token: cfg.BotToken, Client: client, Buffer: 100}
	bot.SetAPIEndpoint(apiEndpoint)
	return &Fetcher{
		bot:          bot,
		client:       client,
		token:        cfg.BotToken,
		fileEndpoint: fileEndpoint,
		maxBytes:     maxBytes,
		logger:       log.With(slog.String("service", "telegram_fetcher")),
	}
}

// Fetch resolves fileID to a file path and downloads it.
func (f *Fetcher) Fetch(ctx context.Context, fileID string) (Download, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return Download{}, fmt.Errorf("file id is required")
	}
	file, err := f.getFile(ctx, fileID)
	if err != nil {
		return Download{}, err
	}
	data, contentType, err := f.download(ctx, file.FilePath)
	if err != nil {
		return Download{}, err
	}
	f.logger.Debug("file downloaded",
		slog.String("file_path", file.FilePath),
		slog.Int("bytes", len(data)),
	)
	return Download{Data: data, FilePath: file.FilePath, ContentType: contentType}, nil
}

func (f *Fetcher) getFile(ctx context.Context, fileID string) (tgbotapi.File, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.File{}, err
	}
	file, err := f.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return tgbotapi.File{}, fmt.Errorf("failed to get file path from Telegram: %w", redact(err))
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return tgbotapi.File{}, fmt.Errorf("failed to get file path from Telegram: empty file_path")
	}
	return file, nil
}

func (f *Fetcher) download(ctx context.Context, filePath string) ([]byte, string, error) {
	endpoint := fmt.Sprintf(f.fileEndpoint, f.token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", redact(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxAPIResponseBytes))
		return nil, "", fmt.Errorf("download file status: %d", resp.StatusCode)
	}
	if err := media.CheckDeclaredSize(resp.ContentLength, f.maxBytes); err != nil {
		return nil, "", err
	}
	data, err := media.ReadAllWithLimit(resp.Body, f.maxBytes)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return data, contentType, nil
}

// redact drops the request URL, which embeds the bot token, from transport errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
