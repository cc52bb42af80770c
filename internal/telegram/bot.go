package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Brownie44l1/crack-api/internal/detector"
	"github.com/Brownie44l1/crack-api/internal/logging"
)

const (
	msgStart = `👋 Hi! I check photos of concrete surfaces for structural cracks.

📸 Send a photo (or an image file) and I will reply with the verdict, the model's confidence and how long it took.

📋 Commands:
/help - how to get a good result`

	msgHelp = `ℹ️ How to use:

1️⃣ Send a photo of the concrete surface
2️⃣ The image is converted to grayscale, resized and classified
3️⃣ You get CRACK / NO CRACK with a confidence score

💡 Tips:
• Fill the frame with the surface
• Avoid strong shadows and glare`

	msgSendPhoto      = "📸 Please send a photo of the surface to check."
	msgUnknownCommand = "❓ Unknown command. Use /help."
	msgProcessing     = "⏳ Analyzing image..."
	msgDownloadError  = "⚠️ Could not download the image. Please try again."
)

// api is the subset of *tgbotapi.BotAPI the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is a Telegram front end for the detector.
type Bot struct {
	api      api
	token    string
	detector *detector.Detector
	logger   *zap.Logger
	client   *http.Client
	download func(ctx context.Context, fileID string) ([]byte, error)
}

func NewBot(token string, d *detector.Detector, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("telegram")
	logger.Info("authorized", zap.String("account", botAPI.Self.UserName))

	return newBot(botAPI, token, d, logger), nil
}

func newBot(a api, token string, d *detector.Detector, logger *zap.Logger) *Bot {
	b := &Bot{
		api:      a,
		token:    token,
		detector: d,
		logger:   logger,
		client:   http.DefaultClient,
	}
	b.download = b.downloadFile
	return b
}

// Run processes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if fileID, ok := imageFileID(msg); ok {
		b.handleImage(ctx, msg.Chat.ID, fileID)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, msgStart)
	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)
	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) handleImage(ctx context.Context, chatID int64, fileID string) {
	b.sendMessage(chatID, msgProcessing)

	ctx = logging.ContextWithRequestID(ctx, fmt.Sprintf("tg-%d-%s", chatID, fileID))
	data, err := b.download(ctx, fileID)
	if err != nil {
		b.logger.Error("download failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendMessage(chatID, msgDownloadError)
		return
	}

	res := b.detector.DetectBytes(ctx, data)
	b.sendMessage(chatID, FormatReply(res))
}

// imageFileID picks the largest photo size, or an image sent as a file.
func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, true
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, true
	}
	return "", false
}

// FormatReply renders a detection result as a chat message.
func FormatReply(res *detector.Result) string {
	if !res.OK() {
		return res.Message()
	}
	return fmt.Sprintf("%s\nConfidence: %s\nTime: %s", res.Message(), res.ConfidenceText(), res.ElapsedText())
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
