package scheduler

import (
	"encoding/json"

	"leadline_backend/internal/delivery"

	"github.com/hibiken/asynq"
)

const TaskManualSupport = "delivery.manual_support"

const TaskPartnerPaymentReminder = "partners.payment.reminder"

// ManualSupportPayload carries a delivery the whole fallback chain failed on.
type ManualSupportPayload struct {
	Request delivery.Request `json:"request"`
}

// PartnerPaymentReminderPayload marks a pending partner payment due for
// follow-up.
type PartnerPaymentReminderPayload struct {
	PaymentID string `json:"paymentId"`
}

func NewManualSupportTask(payload ManualSupportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskManualSupport, data), nil
}

func ParseManualSupportPayload(task *asynq.Task) (ManualSupportPayload, error) {
	var payload ManualSupportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ManualSupportPayload{}, err
	}
	return payload, nil
}

func NewPartnerPaymentReminderTask(payload PartnerPaymentReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPartnerPaymentReminder, data), nil
}

func ParsePartnerPaymentReminderPayload(task *asynq.Task) (PartnerPaymentReminderPayload, error) {
	var payload PartnerPaymentReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PartnerPaymentReminderPayload{}, err
	}
	return payload, nil
}
