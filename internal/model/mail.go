package model

import "time"

// RawMail is one inbound notification message as handed over by a mail fetcher.
type RawMail struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	From       string    `json:"from,omitempty"` // sender address, read by the caller-side pre-filter only
	Text       string    `json:"text,omitempty"`
	HTML       string    `json:"html,omitempty"`
	ReceivedAt time.Time `json:"receivedAt,omitzero"`
}

// HasBody reports whether the mail carries any body text at all.
func (m RawMail) HasBody() bool {
	return m.Text != "" || m.HTML != ""
}
