package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/agroguard/internal/models"
)

const EventDetectionCreated = "detection.created"

// DetectionEvent is published once per persisted detection record.
type DetectionEvent struct {
	Event           string               `json:"event"`
	DetectionID     string               `json:"detection_id"`
	OwnerID         string               `json:"owner_id"`
	CropType        models.CropType      `json:"crop_type"`
	DiseaseName     string               `json:"disease_name"`
	SeverityLevel   models.SeverityLevel `json:"severity_level"`
	ConfidenceScore float64              `json:"confidence_score"`
	CreatedAt       time.Time            `json:"created_at"`
}

func NewDetectionEvent(rec models.DetectionRecord) DetectionEvent {
	return DetectionEvent{
		Event:           EventDetectionCreated,
		DetectionID:     rec.ID,
		OwnerID:         rec.OwnerID,
		CropType:        rec.CropType,
		DiseaseName:     rec.DiseaseName,
		SeverityLevel:   rec.SeverityLevel,
		ConfidenceScore: rec.ConfidenceScore,
		CreatedAt:       rec.CreatedAt,
	}
}

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// declareQueues sets up queue, queue.retry and queue.dlq. Rejected messages
// dead-letter to the dlq; retry messages dead-letter back to the main queue.
func declareQueues(ch *amqp.Channel, queue string) error {
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	})
	return err
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NotifyDetection publishes a detection.created event for rec.
func (p *Publisher) NotifyDetection(ctx context.Context, rec models.DetectionRecord) error {
	return p.Publish(ctx, NewDetectionEvent(rec))
}

func (p *Publisher) Publish(ctx context.Context, ev DetectionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.DetectionID,
			Type:         ev.Event,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
