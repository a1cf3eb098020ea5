package model

import (
	"time"
)

// LiveFeedLimit caps the number of messages kept per tenant.
const LiveFeedLimit = 20

type LiveMessage struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	CustomerName  string            `json:"customerName"`
	CustomerPhone string            `json:"customerPhone"`
	Text          string            `json:"text"`
	Status        LiveMessageStatus `json:"status"`
	Intent        Intent            `json:"intent,omitempty"`
	Confidence    *float64          `json:"confidence,omitempty"`
	ReplyPreview  *string           `json:"replyPreview,omitempty"`
}
