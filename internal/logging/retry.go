package logging

import (
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// retryLogger 把 retryablehttp 的键值对日志转换为 logrus 字段。
type retryLogger struct {
	entry *logrus.Entry
}

// RetryLogger 返回可直接赋给 retryablehttp.Client.Logger 的适配器。
// retryablehttp 的 Info 级别日志较为啰嗦，这里统一降为 Debug。
func RetryLogger(logger *logrus.Logger, fields logrus.Fields) retryablehttp.LeveledLogger {
	return &retryLogger{entry: logger.WithFields(fields)}
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Error(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Debug(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Debug(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Warn(msg)
}

func (l *retryLogger) with(keysAndValues []interface{}) *logrus.Entry {
	if len(keysAndValues) == 0 {
		return l.entry
	}
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}
