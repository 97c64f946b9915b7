package notify

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"worksync/internal/models"
	"worksync/internal/pkg/httpclient"
)

// TelegramNotifier posts terminal job states to an operator channel
// through the Telegram Bot API. Delivery is best effort; a failed
// notification never affects the job itself.
type TelegramNotifier struct {
	chatID   string
	endpoint string
	client   *httpclient.Client
	logger   *zap.Logger
}

// NewTelegramNotifier returns nil when token or chat id is unset, so
// callers can wire the notifier unconditionally.
func NewTelegramNotifier(token, chatID string, logger *zap.Logger) *TelegramNotifier {
	if token == "" || chatID == "" {
		return nil
	}
	return &TelegramNotifier{
		chatID:   chatID,
		endpoint: "https://api.telegram.org/bot" + token + "/sendMessage",
		client:   httpclient.New().WithTimeout(10 * time.Second),
		logger:   logger,
	}
}

// JobFinished reports one terminal job state.
func (n *TelegramNotifier) JobFinished(job *models.SyncJob) {
	var icon string
	switch job.Status {
	case models.JobStatusCompleted:
		icon = "✅"
	case models.JobStatusAborted:
		icon = "⏹"
	default:
		icon = "❌"
	}

	text := fmt.Sprintf(
		"%s <b>Sync %s: %s</b>\n\n"+
			"🆔 Job #%d\n"+
			"📦 Processed: %d (created %d / updated %d / failed %d)",
		icon, job.JobType, job.Status,
		job.ID,
		job.RecordsProcessed, job.RecordsCreated, job.RecordsUpdated, job.RecordsFailed,
	)
	if job.StartedAt != nil && job.CompletedAt != nil {
		text += fmt.Sprintf("\n⏱ Duration: %s", job.CompletedAt.Sub(*job.StartedAt).Round(time.Second))
	}
	if job.ErrorMessage != "" {
		text += fmt.Sprintf("\n✍️ Error: <code>%s</code>", job.ErrorMessage)
	}

	resp, err := n.client.Post(n.endpoint, map[string]interface{}{
		"chat_id":    n.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		n.logger.Warn("Job notification failed", zap.Uint("job_id", job.ID), zap.Error(err))
		return
	}
	if resp.IsError() {
		n.logger.Warn("Job notification rejected",
			zap.Uint("job_id", job.ID),
			zap.Int("status", resp.StatusCode()),
		)
	}
}
