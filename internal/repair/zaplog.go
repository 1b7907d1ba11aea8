package repair

import (
	"go.uber.org/zap"
)

// ZapCorrectionLogger writes one structured log entry per correction.
type ZapCorrectionLogger struct {
	log *zap.Logger
}

// NewZapCorrectionLogger adapts a zap logger to CorrectionLogger. A nil logger
// discards entries.
func NewZapCorrectionLogger(log *zap.Logger) *ZapCorrectionLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapCorrectionLogger{log: log}
}

// LogCorrection implements CorrectionLogger.
func (l *ZapCorrectionLogger) LogCorrection(entry LogEntry) error {
	fields := []zap.Field{
		zap.String("file_id", entry.FileID),
		zap.String("correction_type", entry.CorrectionType),
		zap.Bool("success", entry.Success),
		zap.Int("old_length", len(entry.OldContent)),
		zap.Int("new_length", len(entry.NewContent)),
		zap.Duration("duration", entry.Duration),
	}
	if entry.Success {
		l.log.Info("correction", fields...)
	} else {
		l.log.Warn("correction failed", fields...)
	}
	return nil
}
