package logger

import (
	"context"
	"log/slog"
	"math/rand"
	"regexp"
	"sync"
)

// AsyncHandler buffers records in a channel and writes them from a single
// background goroutine. A full buffer blocks the caller unless the handler
// was created with drop set.
type AsyncHandler struct {
	next slog.Handler
	ch   chan asyncRecord
	drop bool

	closeOnce sync.Once
	done      chan struct{}
}

type asyncRecord struct {
	ctx context.Context
	rec slog.Record
}

// NewAsyncHandler wraps next with a buffer of the given size. When drop is
// true, records are discarded once the buffer is full instead of blocking.
func NewAsyncHandler(next slog.Handler, bufSize int, drop bool) *AsyncHandler {
	h := &AsyncHandler{
		next: next,
		ch:   make(chan asyncRecord, bufSize),
		drop: drop,
		done: make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *AsyncHandler) run() {
	for r := range h.ch {
		_ = h.next.Handle(r.ctx, r.rec)
	}
	close(h.done)
}

// Close stops the background writer after draining the buffer.
func (h *AsyncHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.ch)
		<-h.done
	})
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.drop {
		select {
		case h.ch <- asyncRecord{ctx: ctx, rec: r}:
		default:
		}
		return nil
	}
	h.ch <- asyncRecord{ctx: ctx, rec: r}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewAsyncHandler(h.next.WithAttrs(attrs), cap(h.ch), h.drop)
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return NewAsyncHandler(h.next.WithGroup(name), cap(h.ch), h.drop)
}

// SamplingHandler forwards a fraction of records. Warnings and errors always
// pass.
type SamplingHandler struct {
	next slog.Handler
	rate float64
}

func NewSamplingHandler(next slog.Handler, rate float64) *SamplingHandler {
	return &SamplingHandler{next: next, rate: rate}
}

func (h *SamplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SamplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < slog.LevelWarn && rand.Float64() >= h.rate {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *SamplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SamplingHandler{next: h.next.WithAttrs(attrs), rate: h.rate}
}

func (h *SamplingHandler) WithGroup(name string) slog.Handler {
	return &SamplingHandler{next: h.next.WithGroup(name), rate: h.rate}
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ \-]?){13,19}\b`)
)

// RedactHandler masks common PII shapes (email addresses, card numbers) in
// string attribute values before they reach the output handler.
type RedactHandler struct {
	next slog.Handler
}

func NewRedactHandler(next slog.Handler) *RedactHandler {
	return &RedactHandler{next: next}
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	if emailPattern.MatchString(s) || cardPattern.MatchString(s) {
		redacted := emailPattern.ReplaceAllString(s, "[REDACTED]")
		redacted = cardPattern.ReplaceAllString(redacted, "[REDACTED]")
		return slog.String(a.Key, redacted)
	}
	return a
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RedactHandler{next: h.next.WithAttrs(attrs)}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{next: h.next.WithGroup(name)}
}
