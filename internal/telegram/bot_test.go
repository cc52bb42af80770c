package telegram

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Brownie44l1/crack-api/internal/detector"
	"github.com/Brownie44l1/crack-api/internal/features"
	"github.com/Brownie44l1/crack-api/internal/model"
)

type fakeAPI struct {
	sent    []string
	updates chan tgbotapi.Update
	stopped bool
	file    tgbotapi.File
	fileErr error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	return f.file, f.fileErr
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.stopped = true
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return fn(r)
}

func newTestBot(t *testing.T, engine *model.Engine) (*Bot, *fakeAPI) {
	t.Helper()
	fake := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
	d := detector.New(features.NewDefaultExtractor(), engine, nil)
	return newBot(fake, "TOKEN", d, zap.NewNop()), fake
}

func readyEngine(t *testing.T) *model.Engine {
	t.Helper()
	engine := model.NewEngine(nil)
	engine.Init(func() (model.Classifier, error) {
		return &model.Forest{
			NFeatures: features.DescriptorLen,
			Classes:   []int{0, 1},
			Trees: []model.Tree{{
				ChildrenLeft:  []int{-1},
				ChildrenRight: []int{-1},
				Feature:       []int{-2},
				Threshold:     []float64{-2},
				Value:         [][]float64{{1, 4}},
			}},
		}, nil
	})
	return engine
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 32))))
	return buf.Bytes()
}

func command(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}
}

func TestHandleCommands(t *testing.T) {
	bot, fake := newTestBot(t, readyEngine(t))

	bot.handleMessage(context.Background(), command(1, "/start"))
	bot.handleMessage(context.Background(), command(1, "/help"))
	bot.handleMessage(context.Background(), command(1, "/nope"))
	bot.handleMessage(context.Background(), &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hello"})

	require.Equal(t, []string{msgStart, msgHelp, msgUnknownCommand, msgSendPhoto}, fake.sent)
}

func TestHandlePhoto(t *testing.T) {
	bot, fake := newTestBot(t, readyEngine(t))
	var requested string
	bot.download = func(ctx context.Context, fileID string) ([]byte, error) {
		requested = fileID
		return pngBytes(t), nil
	}

	bot.handleMessage(context.Background(), &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 5},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	})

	require.Equal(t, "large", requested)
	require.Len(t, fake.sent, 2)
	require.Equal(t, msgProcessing, fake.sent[0])
	require.True(t, strings.HasPrefix(fake.sent[1], "⚠️ CRACK DETECTED\nConfidence: 80.0%\nTime: "))
}

func TestHandleImageDocument(t *testing.T) {
	bot, fake := newTestBot(t, readyEngine(t))
	bot.download = func(ctx context.Context, fileID string) ([]byte, error) {
		return []byte("not an image"), nil
	}

	bot.handleMessage(context.Background(), &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 5},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/jpeg"},
	})

	require.Len(t, fake.sent, 2)
	require.Contains(t, fake.sent[1], "Could not read the image")
}

func TestHandlePhotoDownloadError(t *testing.T) {
	bot, fake := newTestBot(t, readyEngine(t))
	bot.download = func(ctx context.Context, fileID string) ([]byte, error) {
		return nil, errors.New("timeout")
	}

	bot.handleMessage(context.Background(), &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 5},
		Photo: []tgbotapi.PhotoSize{{FileID: "p"}},
	})

	require.Equal(t, []string{msgProcessing, msgDownloadError}, fake.sent)
}

func TestFormatReplyFailure(t *testing.T) {
	engine := model.NewEngine(nil)
	engine.Init(func() (model.Classifier, error) { return nil, errors.New("missing") })
	d := detector.New(features.NewDefaultExtractor(), engine, nil)

	reply := FormatReply(d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8))))
	require.Equal(t, "Model is not available. Please try again later.", reply)

	require.Equal(t, "Please upload an image.", FormatReply(d.Detect(context.Background(), nil)))
}

func TestDownloadFile(t *testing.T) {
	bot, fake := newTestBot(t, readyEngine(t))
	fake.file = tgbotapi.File{FileID: "f", FilePath: "photos/file_1.jpg"}

	var gotURL string
	bot.client = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Body:       io.NopCloser(strings.NewReader("payload")),
			Header:     make(http.Header),
		}, nil
	})}

	data, err := bot.downloadFile(context.Background(), "f")
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
	require.Equal(t, "https://api.telegram.org/file/botTOKEN/photos/file_1.jpg", gotURL)

	fake.fileErr = errors.New("no such file")
	_, err = bot.downloadFile(context.Background(), "f")
	require.ErrorContains(t, err, "get file")
}

func TestRunStopsOnCancel(t *testing.T) {
	bot, fake := newTestBot(t, readyEngine(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	fake.updates <- tgbotapi.Update{}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
	require.True(t, fake.stopped)
}
