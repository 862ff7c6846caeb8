package protocol

import (
	"strings"

	"github.com/pkg/errors"
)

// TableInfo is one line of a LIST response.
type TableInfo struct {
	ID     string
	Status string
	Red    string
	Black  string
}

// FormatTableList builds a LIST body: an OK status line followed by one line per table.
func FormatTableList(tables []TableInfo) string {
	var sb strings.Builder
	sb.WriteString(FormatSimpleResponse(CodeOK, "OK"))
	for _, t := range tables {
		sb.WriteString(recordSeparator)
		sb.WriteString(strings.Join([]string{t.ID, t.Status, t.Red, t.Black}, fieldSeparator))
	}
	return sb.String()
}

// ParseTableList decodes a LIST body.
func ParseTableList(raw string) ([]TableInfo, error) {
	code, msg, err := ParseSimpleResponse(raw)
	if err != nil {
		return nil, err
	}
	if code != CodeOK {
		return nil, errors.Errorf("list failed: %s", msg)
	}
	lines := strings.Split(raw, recordSeparator)[1:]
	tables := make([]TableInfo, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		f := strings.Split(line, fieldSeparator)
		if len(f) != 4 || f[0] == "" {
			return nil, errors.Wrapf(ErrMalformedResponse, "table line %d", i+1)
		}
		tables = append(tables, TableInfo{ID: f[0], Status: f[1], Red: f[2], Black: f[3]})
	}
	return tables, nil
}
