package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is a source row keyed by column name.
type Row map[string]any

// String returns a column as trimmed text. Missing, nil and blank columns
// return false.
func (r Row) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case time.Time:
		s = x.Format(time.DateOnly)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// StringPtr is String for nullable destination columns.
func (r Row) StringPtr(key string) *string {
	s, ok := r.String(key)
	if !ok {
		return nil
	}
	return &s
}

// Float returns a numeric column. Text columns are parsed.
func (r Row) Float(key string) (float64, bool) {
	switch x := r[key].(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	}
	s, ok := r.String(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// attr returns the column value for a JSON attribute, nil when absent.
func (r Row) attr(key string) any {
	s, ok := r.String(key)
	if !ok {
		return nil
	}
	return s
}
