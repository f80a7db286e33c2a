package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/lock"
)

const (
	sendLockTTL = 30 * time.Second
	// redeliveries inside this window are recognised and not mailed again
	sentMemory = 7 * 24 * time.Hour
)

// Handler processes notification tasks in the worker.
type Handler struct {
	Mail    common.Mailer
	Enabled bool
	// Locker deduplicates confirmations per estimate. Optional.
	Locker *lock.Locker
	Logger zerolog.Logger
}

// Register mounts every notification task on mux.
func (h Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeEstimateCreated, h.ProcessEstimateCreated)
}

// ProcessEstimateCreated sends the customer confirmation for a new estimate.
// Malformed payloads are dropped without retry.
func (h Handler) ProcessEstimateCreated(ctx context.Context, t *asynq.Task) error {
	var p EstimateCreatedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TypeEstimateCreated, err, asynq.SkipRetry)
	}
	to := strings.TrimSpace(p.CustomerEmail)
	if !h.Enabled || h.Mail == nil || to == "" {
		h.Logger.Debug().Str("reference", p.ReferenceNumber).Msg("estimate confirmation skipped")
		return nil
	}
	msg := common.Message{To: to, Subject: confirmationSubject(p), HTML: confirmationBody(p)}
	send := func(ctx context.Context) error {
		if err := h.Mail.Send(ctx, msg); err != nil {
			return fmt.Errorf("send confirmation %s: %w", p.ReferenceNumber, err)
		}
		h.Logger.Info().Str("reference", p.ReferenceNumber).Str("partner", p.PartnerSlug).Msg("estimate confirmation sent")
		return nil
	}
	if h.Locker == nil {
		return send(ctx)
	}
	ran, err := h.Locker.Once(ctx, "notify:"+p.EstimateID, sendLockTTL, sentMemory, send)
	if err == nil && !ran {
		h.Logger.Info().Str("reference", p.ReferenceNumber).Msg("estimate confirmation already sent")
	}
	return err
}

func confirmationSubject(p EstimateCreatedPayload) string {
	from := p.PartnerName
	if from == "" {
		from = p.PartnerSlug
	}
	return fmt.Sprintf("Your estimate %s from %s", p.ReferenceNumber, from)
}

func confirmationBody(p EstimateCreatedPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hello %s,</p>", html.EscapeString(p.CustomerName))
	fmt.Fprintf(&b, "<p>Thank you for your request. Your estimate reference is <strong>%s</strong>.</p>", html.EscapeString(p.ReferenceNumber))
	fmt.Fprintf(&b, "<p>Monthly total: %s<br>Yearly total: %s</p>", html.EscapeString(p.TotalMonthly), html.EscapeString(p.TotalYearly))
	return b.String()
}
