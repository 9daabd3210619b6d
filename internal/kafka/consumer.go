package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/codetrack-engine/internal/config"
	"github.com/codetrack-engine/internal/domain"
)

// SyncRequest is the message format for queued sync triggers. An empty
// platform means all of the user's platforms.
type SyncRequest struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform,omitempty"`
}

// SyncHandler runs sync cycles on behalf of queued requests
type SyncHandler interface {
	SyncOne(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error)
	SyncAll(ctx context.Context, userID string) (*domain.SyncReport, error)
}

// Consumer consumes sync requests from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       SyncHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler SyncHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes sync requests from a topic partition. Requests
// run one at a time; a sync touches rate-limited upstream sites, so
// parallelism buys nothing here.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var req SyncRequest
			if err := json.Unmarshal(message.Value, &req); err != nil {
				h.consumer.logger.Warn("failed to unmarshal sync request",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			if req.UserID == "" {
				h.consumer.logger.Warn("invalid sync request: missing user_id",
					"offset", message.Offset,
				)
				session.MarkMessage(message, "")
				continue
			}

			h.process(req)
			session.MarkMessage(message, "")
		}
	}
}

// process dispatches one sync request with a bounded deadline
func (h *consumerGroupHandler) process(req SyncRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if req.Platform == "" {
		report, err := h.consumer.handler.SyncAll(ctx, req.UserID)
		if err != nil {
			h.consumer.logger.Error("queued sync failed", "user_id", req.UserID, "error", err)
			return
		}
		h.consumer.logger.Info("queued sync completed",
			"user_id", req.UserID,
			"succeeded", len(report.Succeeded),
			"failed", len(report.Failed),
		)
		return
	}

	platform, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		h.consumer.logger.Warn("invalid sync request platform",
			"user_id", req.UserID,
			"platform", req.Platform,
		)
		return
	}

	if _, err := h.consumer.handler.SyncOne(ctx, req.UserID, platform); err != nil {
		h.consumer.logger.Error("queued sync failed",
			"user_id", req.UserID,
			"platform", platform,
			"error", err,
		)
	}
}
