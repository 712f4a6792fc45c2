package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/yashrajoria/storefront-service/metrics"
	"github.com/yashrajoria/storefront-service/models"
	aws_pkg "github.com/yashrajoria/storefront-service/pkg/aws"
)

// KafkaPublisher is the subset of the Kafka producer used for order events.
type KafkaPublisher interface {
	PublishJSON(ctx context.Context, key string, payload any) error
}

// OrderEventPublisher announces committed orders. Delivery is best effort:
// a failure is logged and counted but never undoes the order.
type OrderEventPublisher interface {
	OrderConfirmed(ctx context.Context, order *models.Order)
}

type eventPublisherImpl struct {
	kafka       KafkaPublisher
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	metrics     *metrics.StoreMetrics
	logger      *zap.Logger
}

const publishTimeout = 5 * time.Second

// NewOrderEventPublisher builds a publisher. Either sink may be nil.
func NewOrderEventPublisher(
	kafka KafkaPublisher,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	m *metrics.StoreMetrics,
	logger *zap.Logger,
) OrderEventPublisher {
	return &eventPublisherImpl{
		kafka:       kafka,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		metrics:     m,
		logger:      logger,
	}
}

func (p *eventPublisherImpl) OrderConfirmed(ctx context.Context, order *models.Order) {
	evt := models.NewOrderConfirmedEvent(order)

	// The request may already be finishing; delivery gets its own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if p.kafka != nil {
		if err := p.kafka.PublishJSON(ctx, evt.OrderID, evt); err != nil {
			p.metrics.PublishFailed("kafka")
			p.logger.Error("Failed to publish order event to Kafka",
				zap.String("order_id", evt.OrderID), zap.Error(err))
		}
	}

	if p.snsClient != nil && p.snsTopicArn != "" {
		body, err := json.Marshal(evt)
		if err != nil {
			p.logger.Error("Failed to marshal order event", zap.String("order_id", evt.OrderID), zap.Error(err))
			return
		}
		attrs := map[string]string{"event": evt.Event}
		if err := p.snsClient.Publish(ctx, p.snsTopicArn, body, attrs); err != nil {
			p.metrics.PublishFailed("sns")
			p.logger.Error("Failed to publish order event to SNS",
				zap.String("order_id", evt.OrderID), zap.Error(err))
		}
	}
}
