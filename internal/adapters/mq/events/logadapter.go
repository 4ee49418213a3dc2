package events

import (
	"context"
	"sort"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/okian/coachmatch/pkg/logger"
)

// logAdapter routes watermill's internal logs through the service logger.
type logAdapter struct {
	log logger.Logger
}

// LogAdapter wraps l as a watermill.LoggerAdapter.
func LogAdapter(l logger.Logger) watermill.LoggerAdapter {
	return &logAdapter{log: l}
}

func (a *logAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(context.Background(), msg, append(toFields(fields), logger.Error(err))...)
}

func (a *logAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(context.Background(), msg, toFields(fields)...)
}

func (a *logAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(context.Background(), msg, toFields(fields)...)
}

func (a *logAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(context.Background(), msg, toFields(fields)...)
}

func (a *logAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &logAdapter{log: a.log.With(toFields(fields)...)}
}

func toFields(fields watermill.LogFields) []logger.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]logger.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, logger.Any(k, fields[k]))
	}
	return out
}
