package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/chatctx"
	"gitlab.com/atividade/api/wa-frontdesk/internal/config"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/observer"
	"gitlab.com/atividade/api/wa-frontdesk/internal/storage"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// sendTask holds the data for one outbound publish handled by the pool.
type sendTask struct {
	ctx context.Context // Context derived for the task, NOT the request context
	msg OutboundMessage
}

// OutboundSender publishes replies to the gateway stream through a worker
// pool and records each delivery in the interaction log.
type OutboundSender struct {
	pool         *ants.PoolWithFunc
	client       ClientInterface
	interactions storage.InteractionRepo
	outCfg       config.OutboundNatsConfig
	baseLogger   *zap.Logger
}

// NewOutboundSender creates and initializes the outbound send pool.
func NewOutboundSender(
	poolCfg config.SendWorkerPoolConfig,
	outCfg config.OutboundNatsConfig,
	client ClientInterface,
	interactions storage.InteractionRepo,
	baseLogger *zap.Logger,
) (*OutboundSender, error) {
	sender := &OutboundSender{
		client:       client,
		interactions: interactions,
		outCfg:       outCfg,
		baseLogger:   baseLogger.Named("send_pool"),
	}

	pool, err := ants.NewPoolWithFunc(poolCfg.PoolSize, func(i interface{}) {
		task, ok := i.(sendTask)
		if !ok {
			sender.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		sender.processSendTask(task)
	},
		ants.WithExpiryDuration(poolCfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(poolCfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			sender.baseLogger.Error("Panic recovered in send pool", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create send worker pool: %w", err)
	}
	sender.pool = pool
	sender.baseLogger.Info("Send worker pool initialized",
		zap.Int("pool_size", poolCfg.PoolSize),
		zap.Int("queue_size", poolCfg.QueueSize),
		zap.Duration("expiry_time", poolCfg.ExpiryTime),
	)
	return sender, nil
}

// Setup ensures the outbound stream exists.
func (s *OutboundSender) Setup(ctx context.Context) error {
	streamCfg := streamConfigForOutbound(s.outCfg)
	if err := s.client.SetupStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("failed to setup outbound stream '%s': %w", s.outCfg.Stream, err)
	}
	return nil
}

// Send queues one text message for delivery to a WhatsApp user. The actual
// publish happens on a pool worker; Send only blocks when the queue is full.
func (s *OutboundSender) Send(ctx context.Context, userID, text string) error {
	requestID, err := chatctx.FromRequestIDContext(ctx)
	if err != nil {
		requestID = uuid.NewString()
	}

	task := sendTask{
		// Detach from the caller's cancellation; the publish should finish
		// even when the triggering request has already returned.
		ctx: logger.WithLogger(context.Background(), logger.FromContext(ctx)),
		msg: OutboundMessage{
			UserID:    userID,
			Text:      text,
			RequestID: requestID,
			Timestamp: utils.Now(),
		},
	}

	observer.IncSendTasksSubmitted()
	observer.SetSendWorkersActive(s.pool.Running())

	if err := s.pool.Invoke(task); err != nil {
		observer.IncSendFailure()
		if errors.Is(err, ants.ErrPoolOverload) {
			return apperrors.NewRetryable(err, "send pool overload")
		}
		return fmt.Errorf("%w: failed to invoke send task: %w", apperrors.ErrTransport, err)
	}
	return nil
}

// processSendTask publishes the message and records it in the interaction log.
func (s *OutboundSender) processSendTask(task sendTask) {
	log := logger.FromContextOr(task.ctx, s.baseLogger).With(
		zap.String("user_id", task.msg.UserID),
		zap.String("request_id", task.msg.RequestID),
	)

	subject := fmt.Sprintf("%s.%s", s.outCfg.SubjectPrefix, subjectToken(task.msg.UserID))
	data := utils.MustMarshalJSON(task.msg)
	headers := map[string]string{"Nats-Msg-Id": task.msg.RequestID}

	if err := s.client.Publish(subject, data, headers); err != nil {
		observer.IncSendFailure()
		log.Error("Failed to publish outbound message",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}

	interaction := &model.Interaction{
		UserID: task.msg.UserID,
		Kind:   model.InteractionMessageSent,
		Payload: datatypes.JSON(utils.MustMarshalJSON(map[string]interface{}{
			"text":       task.msg.Text,
			"request_id": task.msg.RequestID,
		})),
	}
	if err := s.interactions.Save(task.ctx, interaction); err != nil {
		// Delivery already happened; losing the log row is not worth a retry loop.
		log.Warn("Failed to record message_sent interaction", zap.Error(err))
	}

	log.Debug("Outbound message published", zap.String("subject", subject))
}

// Stop releases the worker pool, waiting for in-flight tasks.
func (s *OutboundSender) Stop() {
	if s.pool != nil {
		s.pool.Release()
	}
	s.baseLogger.Info("Send worker pool stopped")
}

// streamConfigForOutbound builds the stream config for outbound replies.
func streamConfigForOutbound(cfg config.OutboundNatsConfig) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.SubjectPrefix + ".>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(cfg.MaxAge*24) * time.Hour,
	}
}

// subjectToken makes a user id safe for use as a NATS subject token.
func subjectToken(userID string) string {
	replacer := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "@", "_")
	return replacer.Replace(userID)
}
