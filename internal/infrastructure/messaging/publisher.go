package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
	"github.com/sanosuguru/go-seat-lease/internal/pkg/logger"
)

// Publisher は座席確定イベントを RabbitMQ のキューへ送信する
type Publisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewPublisher はブローカーに接続し、キューを宣言する
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ接続に失敗しました: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	// durable なのでブローカー再起動後もメッセージが残る
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("キュー宣言に失敗: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// PublishSeatConfirmed は確定イベントを送信する
func (p *Publisher) PublishSeatConfirmed(ctx context.Context, ev seat.ConfirmedEvent) error {
	msg, err := newPublishing(ev, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("確定イベントの送信に失敗: %w", err)
	}
	logger.Debug("確定イベントを送信しました",
		zap.String("queue", p.queue),
		zap.String("seat", fmt.Sprintf("%s:%d:%d", ev.Sector, ev.Row, ev.Number)),
	)
	return nil
}

// Close はチャネルと接続を閉じる
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil && !p.conn.IsClosed() {
		logger.Warn("チャネルのクローズに失敗", zap.Error(err))
	}
	return p.conn.Close()
}

func newPublishing(ev seat.ConfirmedEvent, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		Type:         "seat.confirmed",
		Body:         body,
	}, nil
}
