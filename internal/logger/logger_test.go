package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	log, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(log)
	suite.NotNil(log.Logger)
}

func (suite *LoggerTestSuite) TestNewNopLogger() {
	log := NewNopLogger()
	suite.NotNil(log)

	// Discards silently, must not panic.
	log.Info("dropped", zap.String("symbol", "AAPL"))
	suite.NoError(log.Sync())
}

func (suite *LoggerTestSuite) TestSyncNilInnerLogger() {
	log := &Logger{Logger: nil}
	suite.NoError(log.Sync())
}

func (suite *LoggerTestSuite) TestLoggingDoesNotPanic() {
	log, err := NewLogger()
	suite.NoError(err)

	log.Info("info message", zap.Float64("price", 150.0))
	log.Warn("warn message")
	log.Error("error message", zap.Error(nil))
	_ = log.Sync()
}
