package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const orderLogPath = "logs/orders.log"

// StartOrderConsumer consumes OrderRecordedEvent messages from the
// named queue and appends one formatted line per order to
// logs/orders.log.  It reconnects with a fixed backoff when the broker
// drops the connection and exits when ctx is cancelled.  Run it in its
// own goroutine.
func StartOrderConsumer(ctx context.Context, queueName string) {
	for {
		if err := consumeOnce(ctx, queueName); err != nil {
			log.Printf("rabbitmq consumer: %v (retrying in 5s)", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func consumeOnce(ctx context.Context, queueName string) error {
	conn, err := amqp.Dial(brokerURL())
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := recordDelivery(d.Body); err != nil {
				log.Printf("rabbitmq consumer: record failed: %v", err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func recordDelivery(body []byte) error {
	var ev OrderRecordedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		// Malformed payloads are logged and dropped; requeueing them
		// would loop forever.
		log.Printf("rabbitmq consumer: bad payload: %v", err)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(orderLogPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(orderLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	owner := "device:" + ev.DeviceID
	if ev.UserID != 0 {
		owner = fmt.Sprintf("user:%d", ev.UserID)
	}
	line := fmt.Sprintf("%s | %s | %s | %s | %d | %s | %s\n",
		ev.RecordedAt, ev.TransactionID, ev.ItemType, ev.ItemName, ev.Amount, ev.Status, owner)
	_, err = f.WriteString(line)
	return err
}
