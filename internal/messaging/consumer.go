package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/chatctx"
	"gitlab.com/atividade/api/wa-frontdesk/internal/config"
	"gitlab.com/atividade/api/wa-frontdesk/internal/observer"
	"gitlab.com/atividade/api/wa-frontdesk/internal/validator"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

const inboundEventType = "inbound_message"

// MessageHandler processes one inbound WhatsApp event.
type MessageHandler interface {
	HandleInbound(ctx context.Context, event InboundEvent) error
}

// ackAction enumerates the possible outcomes after handling a message.
type ackAction int

const (
	actionAck ackAction = iota
	actionNakDelay
	actionTerm
)

// determineAckAction decides what to do with a message given the handler error.
func determineAckAction(err error, numDelivered uint64, maxDeliver int, nakBaseDelay, nakMaxDelay time.Duration) (ackAction, time.Duration) {
	if err == nil {
		return actionAck, 0
	}
	if apperrors.IsFatal(err) || !apperrors.IsRetryable(err) {
		return actionTerm, 0
	}
	if maxDeliver > 0 && numDelivered >= uint64(maxDeliver) {
		return actionTerm, 0
	}

	attempt := numDelivered // starts at 1
	delay := nakBaseDelay
	if attempt > 1 {
		delay = nakBaseDelay * (1 << (attempt - 1))
	}
	if delay > nakMaxDelay {
		delay = nakMaxDelay
	}
	return actionNakDelay, delay
}

// InboundConsumer receives WhatsApp events from the gateway stream and
// feeds them to the bot flow.
type InboundConsumer struct {
	client  ClientInterface
	handler MessageHandler
	cfg     config.ConsumerNatsConfig
	sub     *nats.Subscription
	ctx     context.Context
}

// NewInboundConsumer creates a consumer for the inbound event stream
func NewInboundConsumer(ctx context.Context, client ClientInterface, handler MessageHandler, cfg config.ConsumerNatsConfig) *InboundConsumer {
	return &InboundConsumer{
		client:  client,
		handler: handler,
		cfg:     cfg,
		ctx:     ctx,
	}
}

// Setup configures the NATS stream and consumer for inbound events
func (c *InboundConsumer) Setup() error {
	log := logger.FromContext(c.ctx)
	log.Info("Setting up InboundConsumer...",
		zap.String("stream", c.cfg.Stream),
		zap.String("consumer", c.cfg.Consumer))

	streamCfg := &nats.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  c.cfg.SubjectList,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(c.cfg.MaxAge*24) * time.Hour,
	}
	if err := c.client.SetupStream(c.ctx, streamCfg); err != nil {
		return fmt.Errorf("failed to setup inbound stream '%s': %w", c.cfg.Stream, err)
	}

	consumerCfg := &nats.ConsumerConfig{
		Durable:        c.cfg.Consumer,
		DeliverGroup:   c.cfg.QueueGroup,
		FilterSubjects: c.cfg.SubjectList,
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverSubject: nats.NewInbox(),
		MaxDeliver:     c.cfg.MaxDeliver,
		AckWait:        30 * time.Second,
		MaxAckPending:  1000,
		ReplayPolicy:   nats.ReplayInstantPolicy,
	}
	if err := c.client.SetupConsumer(c.ctx, c.cfg.Stream, consumerCfg); err != nil {
		return fmt.Errorf("failed to setup inbound consumer '%s' for stream '%s': %w", c.cfg.Consumer, c.cfg.Stream, err)
	}

	log.Info("InboundConsumer setup complete")
	return nil
}

// Start subscribes to the inbound subjects
func (c *InboundConsumer) Start() error {
	if len(c.cfg.SubjectList) == 0 {
		return fmt.Errorf("%w: inbound consumer has no subjects", apperrors.ErrBadRequest)
	}

	sub, err := c.client.SubscribePush(
		c.cfg.SubjectList[0],
		c.cfg.Consumer,
		c.cfg.QueueGroup,
		c.cfg.Stream,
		c.handleMessage,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to start inbound subscription: %w", apperrors.ErrTransport, err)
	}
	c.sub = sub

	logger.FromContext(c.ctx).Info("Inbound consumer started",
		zap.String("subject", c.cfg.SubjectList[0]),
		zap.String("queue_group", c.cfg.QueueGroup))
	return nil
}

// Stop drains the subscription
func (c *InboundConsumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	if err := c.sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain inbound subscription: %w", err)
	}
	return nil
}

// handleMessage unmarshals, validates and dispatches one inbound event.
func (c *InboundConsumer) handleMessage(msg *nats.Msg) {
	startTime := utils.Now()
	observer.IncEventsReceived(inboundEventType)

	log := logger.FromContext(c.ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("[panic] Recovered from panic in inbound handler",
				zap.Any("panic", r),
				zap.String("subject", msg.Subject),
				zap.Stack("stack"),
			)
			observer.IncEventsFailed(inboundEventType)
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	metadata, err := msg.Metadata()
	if err != nil {
		log.Error("Failed to read message metadata", zap.Error(err))
		observer.IncEventsFailed(inboundEventType)
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message", zap.Error(nakErr))
		}
		return
	}

	var event InboundEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Error("Failed to unmarshal inbound event, terminating message",
			zap.Error(err),
			zap.String("subject", msg.Subject))
		observer.IncEventsFailed(inboundEventType)
		if termErr := msg.Term(); termErr != nil {
			log.Error("Failed to TERM malformed message", zap.Error(termErr))
		}
		return
	}

	if err := validator.Validate(event); err != nil {
		log.Warn("Inbound event failed validation, terminating message",
			zap.Error(err),
			zap.String("user_id", event.UserID))
		observer.IncEventsFailed(inboundEventType)
		if termErr := msg.Term(); termErr != nil {
			log.Error("Failed to TERM invalid message", zap.Error(termErr))
		}
		return
	}

	requestID := msg.Header.Get("Nats-Msg-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	msgCtx := chatctx.WithRequestID(c.ctx, requestID)
	msgCtx = chatctx.WithUserID(msgCtx, event.UserID)
	fields := []zap.Field{
		zap.String("user_id", event.UserID),
		zap.Uint64("stream_sequence", metadata.Sequence.Stream),
	}
	if event.Timestamp > 0 {
		fields = append(fields, zap.Duration("gateway_lag", startTime.Sub(utils.UnixToTime(event.Timestamp))))
	}
	msgCtx = logger.WithLogger(msgCtx, log.With(fields...))

	processingErr := c.handler.HandleInbound(msgCtx, event)

	enhancedLog := logger.FromContext(msgCtx)
	action, nakDelay := determineAckAction(processingErr, metadata.NumDelivered, c.cfg.MaxDeliver, c.cfg.NakBaseDelay, c.cfg.NakMaxDelay)

	switch action {
	case actionAck:
		enhancedLog.Info("Successfully processed inbound event", zap.Duration("duration", time.Since(startTime)))
		observer.IncEventsProcessed(inboundEventType)
		if ackErr := msg.Ack(); ackErr != nil {
			enhancedLog.Error("Failed to ACK message after successful processing", zap.Error(ackErr))
		}

	case actionNakDelay:
		enhancedLog.Info("NAKing inbound event with delay for redelivery",
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Duration("nak_delay", nakDelay),
		)
		observer.IncEventsFailed(inboundEventType)
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			enhancedLog.Error("Failed to NAK message with delay", zap.Error(nakErr))
		}

	case actionTerm:
		enhancedLog.Error("Terminating inbound event (fatal error or max deliveries reached)",
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
		)
		observer.IncEventsFailed(inboundEventType)
		if termErr := msg.Term(); termErr != nil {
			enhancedLog.Error("Failed to TERM message", zap.Error(termErr))
		}
	}
}
