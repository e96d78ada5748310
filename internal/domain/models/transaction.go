package models

import "time"

type Transaction struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	HistoryIncoming = "incoming"
	HistoryOutgoing = "outgoing"
)

// HistoryEntry is a transfer seen from one participant. Outgoing amounts
// are negative.
type HistoryEntry struct {
	Type         string
	Amount       int64
	Counterparty string
	At           time.Time
}
