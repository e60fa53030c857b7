package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/reqctx"
)

// New builds the process logger. format is "json" or "text".
func New(level, format string) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, format)
}

func NewWithOutput(out io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Discard returns a logger that drops everything; used by tests and tools.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// FromContext returns an entry tagged with the request id and caller found in ctx.
func FromContext(ctx context.Context, l logrus.FieldLogger) *logrus.Entry {
	if l == nil {
		l = Discard()
	}
	fields := logrus.Fields{}
	if rid := reqctx.RequestID(ctx); rid != "" {
		fields["request_id"] = rid
	}
	if uid := reqctx.UserID(ctx); uid != 0 {
		fields["user_id"] = uid
	}
	return l.WithFields(fields)
}
