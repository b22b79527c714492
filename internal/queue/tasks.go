package queue

import "encoding/json"

const (
	TypePipelineRun    = "pipeline:run"
	TypeWebhookDeliver = "webhook:deliver"
)

type PipelineRunPayload struct {
	JobID       string `json:"job_id"`
	Topic       string `json:"topic"`
	Language    string `json:"language,omitempty"`
	Model       string `json:"model,omitempty"`
	Voice       string `json:"voice,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type WebhookDeliverPayload struct {
	JobID   string          `json:"job_id"`
	URL     string          `json:"url"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}
