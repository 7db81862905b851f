package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"omrpipe/internal/config"
	"omrpipe/internal/outcome"
)

const userAgent = "omrpipe/0.1"

// Conversion summarizes one finished job.
type Conversion struct {
	JobID    string
	Document string
	Pages    int
	Kind     outcome.Kind
	Artifact string
	Detail   string
}

// Service is the notification surface used by the pipeline and CLI.
type Service interface {
	NotifyConversion(ctx context.Context, conv Conversion) error
	NotifyBatchCompleted(ctx context.Context, converted, failed int, elapsed time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		notifySuccess: cfg.Notifications.NotifySuccess,
	}
}

// Enabled reports whether svc actually delivers messages.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	notifySuccess bool
}

func (n *ntfyService) NotifyConversion(ctx context.Context, conv Conversion) error {
	document := filepath.Base(strings.TrimSpace(conv.Document))
	if conv.Kind == outcome.KindSuccess {
		if !n.notifySuccess {
			return nil
		}
		return n.send(ctx, payload{
			title:   "omrpipe - Converted",
			message: fmt.Sprintf("🎼 %s converted (%d page(s))\n%s", document, conv.Pages, filepath.Base(conv.Artifact)),
			tags:    []string{"omrpipe", "converted"},
		})
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ %s failed: %s", document, strings.ReplaceAll(string(conv.Kind), "_", " "))
	if detail := strings.TrimSpace(conv.Detail); detail != "" {
		builder.WriteString("\n")
		builder.WriteString(detail)
	}
	if conv.JobID != "" {
		builder.WriteString("\njob ")
		builder.WriteString(conv.JobID)
	}
	priority := "default"
	if conv.Kind == outcome.KindCrash {
		priority = "high"
	}
	return n.send(ctx, payload{
		title:    "omrpipe - Conversion Failed",
		message:  builder.String(),
		tags:     []string{"omrpipe", "failed", string(conv.Kind)},
		priority: priority,
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, converted, failed int, elapsed time.Duration) error {
	message := fmt.Sprintf("📚 Batch complete: %d converted", converted)
	if failed > 0 {
		message += fmt.Sprintf(", %d failed", failed)
	}
	if elapsed > 0 {
		message += fmt.Sprintf(" in %s", elapsed.Round(time.Second))
	}
	return n.send(ctx, payload{
		title:   "omrpipe - Batch Complete",
		message: message,
		tags:    []string{"omrpipe", "batch", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "omrpipe - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"omrpipe", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyConversion(context.Context, Conversion) error                  { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
