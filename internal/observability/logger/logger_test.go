package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewBuildsJSONLogger(t *testing.T) {
	log, err := New(nil, Config{Level: "debug", ServiceName: "telbill-test"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))
}

func TestWithContextWithoutSpanReturnsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestGormLoggerDropsParams(t *testing.T) {
	l := NewGormLogger(gormlogger.Warn, 0)
	sql, params := l.ParamsFilter(context.Background(), "SELECT 1 WHERE a = ?", "9845012345")
	assert.Equal(t, "SELECT 1 WHERE a = ?", sql)
	assert.Nil(t, params)
	assert.NotSame(t, l, l.LogMode(gormlogger.Info))
}
