package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/xbtalert/internal/model"
)

// Metrics tracks delivered/failed alert sends per destination, following
// the teacher's labelled-CounterVec registry pattern.
type Metrics struct {
	Delivered *prometheus.CounterVec
	Failed    *prometheus.CounterVec
}

// NewMetrics builds and registers the dispatcher's Prometheus counters
// against reg. Production callers pass prometheus.DefaultRegisterer;
// tests pass a throwaway prometheus.NewRegistry() to avoid collisions
// across test cases.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xbtalert_dispatch_delivered_total",
			Help: "Total alerts delivered, by chat destination and delivery mode",
		}, []string{"chat_id", "mode"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xbtalert_dispatch_failed_total",
			Help: "Total alert delivery failures, by chat destination",
		}, []string{"chat_id"}),
	}
	reg.MustRegister(m.Delivered, m.Failed)
	return m
}

// Dispatcher delivers formatted alerts to Telegram-shaped chat
// destinations (spec §6: bot_token + numeric chat ids). Delivery is
// image-first with a text fallback and is at-most-once: a failed send is
// logged and counted, never retried (spec §4.8).
type Dispatcher struct {
	botToken     string
	imagePath    string
	httpClient   *http.Client
	metrics      *Metrics
	telegramBase string
}

// NewDispatcher builds a Dispatcher for the given bot token and alert image.
func NewDispatcher(botToken, imagePath string, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		botToken:     botToken,
		imagePath:    imagePath,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		metrics:      metrics,
		telegramBase: "https://api.telegram.org",
	}
}

// Send delivers rec to every chatID in destinations.
func (d *Dispatcher) Send(ctx context.Context, rec model.AlertRecord, destinations []int64) {
	if d.botToken == "" {
		log.Error().Msg("bot token not configured, cannot send alerts")
		return
	}
	message := Format(rec)
	for _, chatID := range destinations {
		d.sendToChat(ctx, chatID, message)
	}
}

func (d *Dispatcher) sendToChat(ctx context.Context, chatID int64, message string) {
	label := fmt.Sprintf("%d", chatID)

	if d.imagePath != "" {
		if err := d.sendPhoto(ctx, chatID, message); err == nil {
			d.metrics.Delivered.WithLabelValues(label, "photo").Inc()
			log.Info().Int64("chat_id", chatID).Msg("alert sent with image")
			return
		} else {
			log.Warn().Int64("chat_id", chatID).Err(err).Msg("image alert failed, falling back to text")
		}
	}

	if err := d.sendText(ctx, chatID, message); err != nil {
		d.metrics.Failed.WithLabelValues(label).Inc()
		log.Error().Int64("chat_id", chatID).Err(err).Msg("alert delivery failed")
		return
	}
	d.metrics.Delivered.WithLabelValues(label, "text").Inc()
	log.Info().Int64("chat_id", chatID).Msg("alert sent (text-only)")
}

func (d *Dispatcher) sendPhoto(ctx context.Context, chatID int64, caption string) error {
	f, err := os.Open(d.imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return err
	}
	if err := writer.WriteField("caption", caption); err != nil {
		return err
	}
	if err := writer.WriteField("parse_mode", "HTML"); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("photo", filepath.Base(d.imagePath))
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("attach image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/bot%s/sendPhoto", d.telegramBase, d.botToken), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram sendPhoto: status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendText(ctx context.Context, chatID int64, text string) error {
	form := url.Values{}
	form.Set("chat_id", fmt.Sprintf("%d", chatID))
	form.Set("text", text)
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/bot%s/sendMessage", d.telegramBase, d.botToken), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram sendMessage: status %d", resp.StatusCode)
	}
	return nil
}
