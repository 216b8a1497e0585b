package logger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as one flat line: key=value pairs or a
// JSON object. Known keys come first in keyOrder, the rest sorted.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = defaultKeyOrder
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}

	rec := make(record, 16)
	ts := r.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	rec["level"] = normalizeLevel(r.Level.String())
	if h.cfg.format == formatJSON {
		rec["ts_unix_nano"] = ts.UnixNano()
	}

	for _, a := range h.attrs {
		rec.add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.add(h.prefix, a)
		return true
	})
	for _, a := range MetaFrom(ctx).fields() {
		if _, ok := rec[a.Key]; !ok {
			rec[a.Key] = a.Value.Any()
		}
	}

	rec.compactRID(h.cfg.format == formatJSON)
	if rec.str("event") == "" {
		rec["event"] = cmp.Or(r.Message, "unknown")
	}
	if rec.str("component") == "" {
		rec["component"] = "app"
	}
	rec.normalize()

	var (
		line []byte
		err  error
	)
	if h.cfg.format == formatJSON {
		line, err = encodeJSON(rec, h.cfg.keyOrder)
	} else {
		line = encodeKV(rec, h.cfg.keyOrder)
	}
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		if a.Key != "" {
			a.Key = joinKey(h.prefix, a.Key)
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// record is one log line before encoding. Groups are flattened into dotted keys.
type record map[string]any

func (rec record) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			rec.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := fieldValue(key, v); ok {
		rec[k] = val
	}
}

func (rec record) str(key string) string {
	switch v := rec[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// compactRID shortens the request id; JSON lines keep the raw one as rid_full.
func (rec record) compactRID(keepFull bool) {
	rid := rec.str("rid")
	compact := CompactRID(rid)
	if rid == "" || compact == rid {
		return
	}
	if _, seen := rec["rid_full"]; keepFull && !seen {
		rec["rid_full"] = rid
	}
	rec["rid"] = compact
}

// normalize applies the enumerations and drops empty values.
func (rec record) normalize() {
	rec["level"] = normalizeLevel(rec.str("level"))
	for key := range enumFields {
		raw, ok := rec[key].(string)
		if !ok {
			continue
		}
		if v, keep := normalizeEnum(key, raw); keep {
			rec[key] = v
		} else {
			delete(rec, key)
		}
	}
	maps.DeleteFunc(rec, func(_ string, v any) bool {
		switch x := v.(type) {
		case nil:
			return true
		case string:
			return x == ""
		}
		return false
	})
}

// keys returns the record keys with the configured ones first.
func (rec record) keys(order []string) []string {
	keys := make([]string, 0, len(rec))
	for _, k := range order {
		if _, ok := rec[k]; ok && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(rec)) {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey makes the unit visible: duration becomes duration_ms.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func encodeJSON(rec record, order []string) ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range rec.keys(order) {
		data, err := json.Marshal(rec[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, k)
		buf = append(buf, ':')
		buf = append(buf, data...)
	}
	return append(buf, '}'), nil
}

func encodeKV(rec record, order []string) []byte {
	var buf []byte
	for i, k := range rec.keys(order) {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = appendKVValue(buf, rec[k])
	}
	return buf
}

func appendKVValue(buf []byte, v any) []byte {
	switch x := v.(type) {
	case bool:
		return strconv.AppendBool(buf, x)
	case int64:
		return strconv.AppendInt(buf, x, 10)
	case float64:
		return strconv.AppendFloat(buf, x, 'g', -1, 64)
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
