// Package notify queues and delivers customer notifications through asynq.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeEstimateCreated is the asynq task type sent after an estimate is stored.
const TypeEstimateCreated = "estimate:created"

// EstimateCreatedPayload is the body of an estimate:created task.
type EstimateCreatedPayload struct {
	EstimateID      string `json:"estimate_id"`
	ReferenceNumber string `json:"reference_number"`
	PartnerSlug     string `json:"partner_slug"`
	PartnerName     string `json:"partner_name"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	TotalMonthly    string `json:"total_monthly"`
	TotalYearly     string `json:"total_yearly"`
}

// NewEstimateCreatedTask encodes p as an asynq task.
func NewEstimateCreatedTask(p EstimateCreatedPayload, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", TypeEstimateCreated, err)
	}
	return asynq.NewTask(TypeEstimateCreated, body, opts...), nil
}
