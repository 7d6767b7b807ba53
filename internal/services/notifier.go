package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/milepost-dev/milepost/internal/models"
	"github.com/milepost-dev/milepost/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event is a pending outbound side effect returned by a service
// operation. Services never deliver anything themselves; they stay
// synchronous and the dispatcher drains events out of band.
type Event struct {
	Type    string
	Payload map[string]interface{}
}

// Dispatcher records every event as a Notification row and forwards it
// to a delivery webhook (the email bridge) best-effort. A failed or
// dropped delivery is logged and never propagated to the operation that
// produced the event.
type Dispatcher struct {
	db         *gorm.DB
	webhookURL string
	events     chan Event
	done       chan struct{}
}

func NewDispatcher(db *gorm.DB, webhookURL string) *Dispatcher {
	return &Dispatcher{
		db:         db,
		webhookURL: webhookURL,
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	go func() {
		defer close(d.done)

		for event := range d.events {
			d.deliver(event)
		}
	}()
}

func (d *Dispatcher) Stop() {
	close(d.events)
	<-d.done
}

// Dispatch queues events without blocking the caller. If the queue is
// full the event is dropped and logged; notification delivery is
// best-effort by contract.
func (d *Dispatcher) Dispatch(events ...Event) {
	for _, event := range events {
		select {
		case d.events <- event:
		default:
			log.Printf("notification queue full, dropping %s event", event.Type)
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	payload, err := json.Marshal(event.Payload)

	if err != nil {
		log.Printf("Failed to marshal %s event payload: %v", event.Type, err)
		return
	}

	notification := models.Notification{
		Type:    event.Type,
		Payload: datatypes.JSON(payload),
		Status:  types.NotificationStatusPending,
	}

	if err := d.db.Create(&notification).Error; err != nil {
		log.Printf("Failed to record %s notification: %v", event.Type, err)
	}

	if err := d.post(event.Type, payload); err != nil {
		log.Printf("Failed to deliver %s notification: %v", event.Type, err)

		if notification.ID != 0 {
			d.db.Model(&notification).Updates(map[string]interface{}{
				"status":  types.NotificationStatusFailed,
				"message": err.Error(),
			})
		}
		return
	}

	if notification.ID != 0 {
		now := time.Now()
		d.db.Model(&notification).Updates(map[string]interface{}{
			"status":  types.NotificationStatusSent,
			"sent_at": &now,
		})
	}
}

func (d *Dispatcher) post(eventType string, payload []byte) error {
	if d.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]json.RawMessage{
		"type":    json.RawMessage(fmt.Sprintf("%q", eventType)),
		"payload": json.RawMessage(payload),
	})

	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	resp, err := http.Post(d.webhookURL, "application/json", bytes.NewBuffer(body))

	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
