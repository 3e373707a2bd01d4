package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Sender delivers a single email. Implemented by mailer.Mailer.
type Sender interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// StartVerifyEmailConsumer connects to RabbitMQ, declares the user.verify
// queue (durable), and starts consuming events. Each event becomes a
// verification email sent through the Sender. The function runs a
// reconnect loop and keeps running after processing errors; failed
// messages are rejected without requeue so a poison message cannot wedge
// the worker.
func StartVerifyEmailConsumer(sender Sender, emailSender, baseURL string) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("verify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, sender, emailSender, baseURL); err != nil {
			log.Printf("verify-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, sender Sender, emailSender, baseURL string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Printf("verify-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(VerifyEmailQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(VerifyEmailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, sender, emailSender, baseURL); err != nil {
			log.Printf("verify-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return fmt.Errorf("delivery channel closed")
}

func handleMessage(body []byte, sender Sender, emailSender, baseURL string) error {
	var event VerifyEmailEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Email == "" || event.Token == "" {
		return fmt.Errorf("event missing email or token")
	}

	link := fmt.Sprintf("%s/v1/auth/verify-email/%s", baseURL, event.Token)
	message := fmt.Sprintf("Please go to %s to verify your email.", link)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := sender.Send(ctx, emailSender, event.Email, "Email verification", message); err != nil {
		return fmt.Errorf("send mail to %s: %w", event.Email, err)
	}
	log.Printf("verify-consumer: verification mail sent to user %s", event.UserID)
	return nil
}
