package eventbus

import (
	"context"

	"blog-image-server/internal/platform/logging"
	"blog-image-server/internal/platform/observability"
)

// Subscriber is the subscription side of the bus.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
}

// LoggingHandler 将图片事件写入日志并累计指标
type LoggingHandler struct {
	logger *logging.Logger
}

// NewLoggingHandler 创建日志事件处理器
func NewLoggingHandler(logger *logging.Logger) *LoggingHandler {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &LoggingHandler{logger: logger}
}

func (h *LoggingHandler) onGenerated(data ArtifactEventData) {
	observability.RecordMetric(context.Background(), observability.MetricArtifactsGenerated, 1,
		map[string]string{"variant": data.Variant, "format": data.Format})
	h.logger.DebugTag("EVENT", "artifact generated %s (%d bytes)", data.URL, data.Size)
}

func (h *LoggingHandler) onFailed(data GenerationFailedEventData) {
	observability.RecordMetric(context.Background(), observability.MetricGenerationFailed, 1,
		map[string]string{"variant": data.Variant, "format": data.Format})
	h.logger.WarnTag("EVENT", "generation failed for %s %s/%s: %s",
		data.Source, data.Variant, data.Format, data.Error)
}

func (h *LoggingHandler) onSwept(data ArtifactSweptEventData) {
	h.logger.DebugTag("EVENT", "artifact swept %s (age %s)", data.Path, data.Age)
}

// Register 订阅全部图片事件
func (h *LoggingHandler) Register(bus Subscriber) error {
	if err := bus.Subscribe(EventArtifactGenerated, h.onGenerated); err != nil {
		return err
	}
	if err := bus.Subscribe(EventGenerationFailed, h.onFailed); err != nil {
		return err
	}
	return bus.Subscribe(EventArtifactSwept, h.onSwept)
}
