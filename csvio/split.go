package csvio

import "strings"

// header maps normalized column names to their index.
type header map[string]int

// parseHeader splits the header line on plain commas and normalizes each
// name: trimmed, lower-cased, underscores and spaces removed. So "task_id",
// "taskId" and "Task Id" all become "taskid".
func parseHeader(line string) (header, int) {
	names := strings.Split(line, ",")
	h := make(header, len(names))
	for i, name := range names {
		h[normalize(name)] = i
	}
	return h, len(names)
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "")
	return strings.ReplaceAll(name, " ", "")
}

// lookup returns the index of the first name present.
func (h header) lookup(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := h[n]; ok {
			return i, true
		}
	}
	return 0, false
}

// splitQuoted splits on commas that are not inside double quotes. Fields
// keep their quotes; see unquote.
func splitQuoted(line string) []string {
	var (
		fields  []string
		start   int
		inQuote bool
	)
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				fields = append(fields, line[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, line[start:])
}

// unquote trims a field and, if it is wrapped in double quotes, strips
// them and collapses doubled quotes.
func unquote(field string) string {
	field = strings.TrimSpace(field)
	if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
		field = strings.ReplaceAll(field[1:len(field)-1], `""`, `"`)
	}
	return strings.TrimSpace(field)
}

// quote wraps s in double quotes, doubling any inside.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// parseBool is true only for a case-insensitive "true"; anything else,
// including "1" or "yes", is false.
func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}
