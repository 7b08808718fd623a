package logger

import (
	"go.uber.org/zap"
)

type Config struct {
	Development bool
}

// New builds the process logger. main owns it and passes it down.
func New(cfg Config) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.Development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Nop is used by tests and by components constructed without a logger.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
