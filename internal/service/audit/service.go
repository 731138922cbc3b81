package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service writes the audit trail as structured JSON through zap,
// kept apart from the application log.
type Service struct {
	log *zap.Logger
}

type LogOptions struct {
	Changes   interface{}
	Metadata  map[string]interface{}
	IPAddress string
}

// NewService writes audit records to path ("" or "stdout" for standard output)
func NewService(path string) (*Service, error) {
	if path == "" {
		path = "stdout"
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true

	log, err := cfg.Build(zap.Fields(zap.String("stream", "audit")))
	if err != nil {
		return nil, fmt.Errorf("failed to build audit logger: %w", err)
	}
	return &Service{log: log}, nil
}

// NewWithLogger wraps an existing zap logger
func NewWithLogger(log *zap.Logger) *Service {
	return &Service{log: log}
}

func NewNop() *Service {
	return &Service{log: zap.NewNop()}
}

// Log records that userID performed action on an entity
func (s *Service) Log(ctx context.Context, userID, orgID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	fields := []zap.Field{
		zap.String("user_id", userID.String()),
		zap.String("organization_id", orgID.String()),
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID.String()),
	}
	if opts != nil {
		if opts.Changes != nil {
			fields = append(fields, zap.Any("changes", opts.Changes))
		}
		if len(opts.Metadata) > 0 {
			fields = append(fields, zap.Any("metadata", opts.Metadata))
		}
		if opts.IPAddress != "" {
			fields = append(fields, zap.String("ip_address", opts.IPAddress))
		}
	}
	if ctx.Err() != nil {
		fields = append(fields, zap.Bool("request_cancelled", true))
	}
	s.log.Info("audit", fields...)
}

func (s *Service) Sync() error {
	return s.log.Sync()
}
