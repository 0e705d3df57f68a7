package traceview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Table is the display view of a SQL-shaped output. Headers come from the
// first row's key order; later rows with different keys are not unioned in,
// so their extra values simply never render. Deliberate simplification.
type Table struct {
	Headers []string         `json:"headers"`
	Rows    []map[string]any `json:"rows"`
}

// DecodeOutput decodes a trace's raw output field. Outputs that were
// JSON-stringified twice on the way in are unwrapped one level. The returned
// bytes are the effective JSON document, suitable for TableFrom.
func DecodeOutput(raw string) (any, []byte, error) {
	data := []byte(raw)
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, nil, err
	}
	if s, ok := v.(string); ok {
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			return inner, []byte(s), nil
		}
	}
	return v, data, nil
}

// TableFrom builds a table view when the output document has a result array.
// It needs the raw bytes, not the decoded value, because header order is the
// first row's key order and decoded maps do not keep it.
func TableFrom(raw []byte) (*Table, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, false
	}
	resultRaw, ok := top["result"]
	if !ok {
		return nil, false
	}
	// null unmarshals into a slice without error; only a real array counts.
	trimmed := bytes.TrimSpace(resultRaw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var rowsRaw []json.RawMessage
	if err := json.Unmarshal(resultRaw, &rowsRaw); err != nil {
		return nil, false
	}
	table := &Table{Headers: []string{}, Rows: make([]map[string]any, 0, len(rowsRaw))}
	for _, rowRaw := range rowsRaw {
		var row map[string]any
		if err := json.Unmarshal(rowRaw, &row); err != nil {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	if len(rowsRaw) > 0 {
		if headers := objectKeys(rowsRaw[0]); headers != nil {
			table.Headers = headers
		}
	}
	return table, true
}

// QueryText returns the originating query when the output carries one.
func QueryText(output any) (string, bool) {
	obj, ok := output.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := obj["query_text"].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Multi-word keywords come first so the alternation consumes "GROUP BY" as a
// unit instead of later splitting it at "BY".
var sqlKeywords = regexp.MustCompile(`(?i)\b(GROUP BY|ORDER BY|LEFT JOIN|RIGHT JOIN|INNER JOIN|SELECT|FROM|WHERE|HAVING|JOIN|UNION|LIMIT)\b`)

// FormatSQL inserts a newline before each top-level SQL keyword. Word
// boundaries keep identifiers like SELECTED intact.
func FormatSQL(query string) string {
	return strings.TrimSpace(sqlKeywords.ReplaceAllString(query, "\n$1"))
}

// EncodeCSV renders rows under the locked-in header order, one line per row
// after the header line. A cell is quote-wrapped, with internal quotes
// doubled, only when its string form contains a comma or a double quote.
func EncodeCSV(headers []string, rows []map[string]any) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(c)
		}
		b.WriteByte('\n')
	}

	headerCells := make([]string, len(headers))
	for i, h := range headers {
		headerCells[i] = csvCell(h)
	}
	writeRow(headerCells)

	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = csvCell(cellString(row[h]))
		}
		writeRow(cells)
	}
	return b.String()
}

// CSVFileName and SQLFileName are the export naming convention shared with
// client-side downloads.
func CSVFileName(traceID string) string {
	return fmt.Sprintf("trace_%s_data.csv", traceID)
}

func SQLFileName(traceID string) string {
	return fmt.Sprintf("trace_%s_query.sql", traceID)
}

func csvCell(s string) string {
	if strings.ContainsAny(s, `",`) {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// objectKeys scans the raw bytes of a JSON object and returns its keys in
// document order, skipping over nested values.
func objectKeys(raw []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	keys := make([]string, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil
		}
		keys = append(keys, key)
		var skip any
		if err := dec.Decode(&skip); err != nil {
			return nil
		}
	}
	return keys
}
