package transport

import "go.uber.org/zap"

// Logger is the structured logging sink for connection, pool and
// cluster lifecycle events: handshake failures, heartbeat timeouts,
// reconnection attempts, topology changes.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NopLogger discards everything. It is the default so that opening a
// connection never forces a logging dependency on a caller that doesn't
// want one.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...interface{}) {}
func (NopLogger) Infof(string, ...interface{})  {}
func (NopLogger) Warnf(string, ...interface{})  {}
func (NopLogger) Errorf(string, ...interface{}) {}

// ZapLogger adapts a *zap.SugaredLogger to Logger.
type ZapLogger struct {
	S *zap.SugaredLogger
}

// NewZapLogger wraps l, or builds a production zap.Logger if l is nil.
func NewZapLogger(l *zap.Logger) (ZapLogger, error) {
	if l == nil {
		var err error
		l, err = zap.NewProduction()
		if err != nil {
			return ZapLogger{}, err
		}
	}
	return ZapLogger{S: l.Sugar()}, nil
}

func (z ZapLogger) Debugf(format string, args ...interface{}) { z.S.Debugf(format, args...) }
func (z ZapLogger) Infof(format string, args ...interface{})  { z.S.Infof(format, args...) }
func (z ZapLogger) Warnf(format string, args ...interface{})  { z.S.Warnf(format, args...) }
func (z ZapLogger) Errorf(format string, args ...interface{}) { z.S.Errorf(format, args...) }
