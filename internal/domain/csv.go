package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ToCSV renders records as a CSV document. Headers default to the keys of the
// first record. Strings containing a comma, double quote or newline are quoted
// with inner quotes doubled; nil becomes an empty cell; numbers use their
// shortest decimal form. Lines are joined by "\n" without a trailing newline.
// An empty record set yields "".
func ToCSV(records []Record, headers ...string) string {
	if len(records) == 0 {
		return ""
	}
	if len(headers) == 0 {
		headers = records[0].Keys()
	}

	var b strings.Builder
	b.WriteString(strings.Join(headers, ","))
	for _, rec := range records {
		b.WriteByte('\n')
		for i, h := range headers {
			if i > 0 {
				b.WriteByte(',')
			}
			v, _ := rec.Get(h)
			b.WriteString(formatCell(v))
		}
	}
	return b.String()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return escapeCSV(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case Number:
		if !x.Valid {
			return ""
		}
		return strconv.FormatFloat(x.Value, 'f', -1, 64)
	case fmt.Stringer:
		return escapeCSV(x.String())
	default:
		return fmt.Sprint(x)
	}
}

func escapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
