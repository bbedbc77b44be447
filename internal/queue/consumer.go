package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartAuditConsumer connects to RabbitMQ, declares both lease queues
// (durable), and appends every event to logs/lease.log in a single-line,
// human-friendly format.  It runs a reconnect loop with backoff and keeps
// running across broker restarts; processing errors reject the offending
// message so the server continues operating.
func StartAuditConsumer() error {
	url := brokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("lease-audit: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("lease-audit: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("lease-audit: set QoS failed: %v", err)
	}

	for _, name := range []string{LeaseRequestedQueue, LeaseReturnedQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	requested, err := ch.Consume(LeaseRequestedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", LeaseRequestedQueue, err)
	}
	returned, err := ch.Consume(LeaseReturnedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", LeaseReturnedQueue, err)
	}

	for {
		var d amqp.Delivery
		var ok bool
		select {
		case d, ok = <-requested:
		case d, ok = <-returned:
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := handleMessage(d.Body); err != nil {
			log.Printf("lease-audit: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
}

func handleMessage(body []byte) error {
	var ev LeaseEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "lease.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	slots := "[]"
	if len(ev.Slots) > 0 {
		slots = fmt.Sprintf("[%s]", strings.Join(ev.Slots, ","))
	}

	line := fmt.Sprintf("[%s] Lease %s | lease_id=%d | key=%s | renter=%q | phone=%s | date=%s | slots=%s\n",
		ev.OccurredAt, ev.Status, ev.LeaseID, ev.KeyID, ev.RenterName, ev.Phone, ev.LeaseDate, slots)

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
