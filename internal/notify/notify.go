package notify

import (
	"context"
	"errors"
	"fmt"

	"FrameForge/internal/job"
	types "FrameForge/pkg"

	"go.uber.org/zap"
)

// Params is one outbound notification.
type Params struct {
	Subject  string
	Message  string
	TopicARN string
}

// Notifier delivers best-effort notifications. Errors are *job.Error values
// of kind job.ErrNotification.
type Notifier interface {
	Send(ctx context.Context, p Params) error
}

// Canonical notifications. The texts are fixed and not parameterized per job.
func Success(topic string) Params {
	return Params{
		Subject:  "Arquivo Zipado com sucesso",
		Message:  "O seu video foi processado com sucesso",
		TopicARN: topic,
	}
}

func Failure(topic string) Params {
	return Params{
		Subject:  "Falha no processamento do video",
		Message:  "Nao foi possivel processar o seu video",
		TopicARN: topic,
	}
}

var errMissingTopic = errors.New("notification topic is required")

func checkParams(p Params) error {
	if p.TopicARN == "" {
		return job.NewError(job.ErrNotification, "notify", errMissingTopic)
	}
	return nil
}

func NewNotifier(ctx context.Context, cfg types.NotifierConfig, logger *zap.Logger) (Notifier, error) {
	switch cfg.Type {
	case "sns":
		return NewSNSNotifier(ctx, cfg.SNS, logger)
	case "log":
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unsupported notifier backend: %s", cfg.Type)
	}
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Send(_ context.Context, p Params) error {
	if err := checkParams(p); err != nil {
		return err
	}
	n.logger.Info("Notification",
		zap.String("topic", p.TopicARN),
		zap.String("subject", p.Subject),
		zap.String("message", p.Message),
	)
	return nil
}
