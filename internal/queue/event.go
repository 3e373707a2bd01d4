// Package queue contains the verification-mail event contract, the
// RabbitMQ publisher and the background consumer that turns events into
// outbound email.
package queue

import "time"

// VerifyEmailQueueName is the durable queue carrying verification events.
const VerifyEmailQueueName = "user.verify"

// VerifyEmailEvent is published when an account requests email
// verification and consumed by the mail worker.
type VerifyEmailEvent struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Nickname    string    `json:"nickname"`
	Token       string    `json:"token"`
	RequestedAt time.Time `json:"requested_at"`
}
