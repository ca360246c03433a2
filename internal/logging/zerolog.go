package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts zerolog to Logger. Values implementing slog.LogValuer
// are resolved first so redaction rules apply to both backends.
type ZerologLogger struct {
	l zerolog.Logger
}

func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	z.event(ctx, z.l.Debug(), args).Msg(msg)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, args ...any) {
	z.event(ctx, z.l.Info(), args).Msg(msg)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.event(ctx, z.l.Warn(), args).Msg(msg)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, args ...any) {
	z.event(ctx, z.l.Error(), args).Msg(msg)
}

func (z *ZerologLogger) event(ctx context.Context, e *zerolog.Event, args []any) *zerolog.Event {
	if ctx != nil {
		e = e.Ctx(ctx)
		if id := RequestID(ctx); id != "" {
			e = e.Str("request_id", id)
		}
	}
	return e.Fields(fields(args))
}

func (z *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{l: z.l.With().Fields(fields(args)).Logger()}
}

// fields converts slog-style key–value pairs into a map for zerolog.
// A dangling key is recorded under "!BADKEY", as slog does.
func fields(args []any) map[string]any {
	m := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i++ {
		switch k := args[i].(type) {
		case slog.Attr:
			m[k.Key] = resolveValue(k.Value)
		case string:
			if i+1 >= len(args) {
				m["!BADKEY"] = k
				continue
			}
			m[k] = resolve(args[i+1])
			i++
		default:
			m["!BADKEY"] = fmt.Sprint(k)
		}
	}
	return m
}

func resolve(v any) any {
	switch t := v.(type) {
	case slog.LogValuer:
		return resolveValue(t.LogValue())
	case slog.Value:
		return resolveValue(t)
	case error:
		return t.Error()
	default:
		return v
	}
}

func resolveValue(v slog.Value) any {
	v = v.Resolve()
	if v.Kind() != slog.KindGroup {
		return resolve(v.Any())
	}
	m := make(map[string]any, len(v.Group()))
	for _, a := range v.Group() {
		m[a.Key] = resolveValue(a.Value)
	}
	return m
}
