// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	base.Store(&l)
}

// Options 控制全局 logger 的输出方式
type Options struct {
	Service string
	Level   string // debug / info / warn / error
	Pretty  bool   // 本地开发时使用 ConsoleWriter
	Output  io.Writer
}

// Init 根据配置重新构建全局 logger，应当在 main 的最开始调用。
func Init(opts Options) {
	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	l := zerolog.New(out).Level(level).With().Timestamp().Str("service", opts.Service).Logger()
	base.Store(&l)
}

// L 返回不带请求上下文的全局 logger
func L() *zerolog.Logger {
	return base.Load()
}

// Ctx 返回带有链路信息的 logger，trace_id 可以直接在 Jaeger 中检索。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := base.Load()
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	withTrace := l.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &withTrace
}
