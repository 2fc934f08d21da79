package lokisink

import (
	"context"
	"log/slog"
	"runtime"
	"strings"

	"github.com/lostinspiration/loki-sink/internal/model"
	"github.com/lostinspiration/loki-sink/internal/props"
	"github.com/lostinspiration/loki-sink/internal/sink"
)

// handler adapts the sink to the slog.Handler contract. Record attributes
// and WithAttrs attributes become scoped properties held only for the
// duration of Handle, so they land in the line snapshot without leaking
// into later records.
type handler struct {
	sink   *sink.Sink
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	var file, target string
	var line int
	if r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		file = f.File
		line = f.Line
		target = packageOf(f.Function)
	}

	var guards []*props.Guard
	defer func() {
		for i := len(guards) - 1; i >= 0; i-- {
			guards[i].Release()
		}
	}()

	push := func(a slog.Attr) error {
		a.Value = a.Value.Resolve()
		if a.Key == "" {
			return nil
		}
		name := a.Key
		if len(h.groups) > 0 {
			name = strings.Join(h.groups, ".") + "." + name
		}
		g, err := h.sink.Store().Push(name, a.Value.Any())
		if err != nil {
			return err
		}
		guards = append(guards, g)
		return nil
	}

	for _, a := range h.attrs {
		if err := push(a); err != nil {
			return err
		}
	}
	var attrErr error
	r.Attrs(func(a slog.Attr) bool {
		attrErr = push(a)
		return attrErr == nil
	})
	if attrErr != nil {
		return attrErr
	}

	h.sink.Log(model.Record{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Target:  target,
		File:    file,
		Line:    line,
	})
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &h2
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}

// packageOf extracts the package path from a runtime function name, e.g.
// "github.com/acme/app/internal/web.(*Server).handle" becomes
// "github.com/acme/app/internal/web".
func packageOf(fn string) string {
	if fn == "" {
		return ""
	}
	slash := strings.LastIndexByte(fn, '/')
	dot := strings.IndexByte(fn[slash+1:], '.')
	if dot < 0 {
		return fn
	}
	return fn[:slash+1+dot]
}
