package protocol

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	recordSeparator = "\n"
	fieldSeparator  = ";"
	fieldCount      = 5
)

var (
	ErrMalformedEvent    = errors.New("malformed network event")
	ErrMalformedResponse = errors.New("malformed simple response")
)

// NetworkEvent is one record of a POLL response.
type NetworkEvent struct {
	ID       string
	PlayerID string
	TableID  string
	Type     RequestType
	Content  string
}

func (e NetworkEvent) String() string {
	return strings.Join([]string{e.ID, e.PlayerID, e.TableID, e.Type.String(), e.Content}, " ")
}

// ParseNetworkEvents decodes a POLL body, preserving record order.
// An empty body is a valid, empty batch. Any malformed record fails the whole batch.
func ParseNetworkEvents(raw string) ([]NetworkEvent, error) {
	events := []NetworkEvent{}
	for i, line := range strings.Split(raw, recordSeparator) {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, fieldSeparator, fieldCount)
		if len(fields) != fieldCount {
			return nil, errors.Wrapf(ErrMalformedEvent, "record %d has %d fields", i, len(fields))
		}
		if fields[0] == "" || fields[1] == "" || fields[2] == "" || fields[3] == "" {
			return nil, errors.Wrapf(ErrMalformedEvent, "record %d has an empty header field", i)
		}
		events = append(events, NetworkEvent{
			ID:       fields[0],
			PlayerID: fields[1],
			TableID:  fields[2],
			Type:     ParseRequestType(fields[3]),
			Content:  fields[4],
		})
	}
	return events, nil
}

// FormatNetworkEvents is the inverse of ParseNetworkEvents.
func FormatNetworkEvents(events []NetworkEvent) string {
	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(e.ID)
		sb.WriteString(fieldSeparator)
		sb.WriteString(e.PlayerID)
		sb.WriteString(fieldSeparator)
		sb.WriteString(e.TableID)
		sb.WriteString(fieldSeparator)
		sb.WriteString(e.Type.String())
		sb.WriteString(fieldSeparator)
		sb.WriteString(SanitizeContent(e.Content))
		sb.WriteString(recordSeparator)
	}
	return sb.String()
}

// SanitizeContent flattens line breaks so content cannot split a record.
func SanitizeContent(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

// ValidID reports whether s can be carried as an id field.
func ValidID(s string) bool {
	return s != "" && !strings.ContainsAny(s, fieldSeparator+"\r\n")
}

// Result codes of a simple response.
const (
	CodeOK    = 0
	CodeError = 1
)

// ParseSimpleResponse decodes the status line "<code> <message>".
// Only the first line is considered.
func ParseSimpleResponse(raw string) (code int, message string, err error) {
	line := raw
	if i := strings.IndexAny(raw, "\r\n"); i >= 0 {
		line = raw[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, "", errors.WithMessage(ErrMalformedResponse, "empty status line")
	}
	codeStr, message, _ := strings.Cut(line, " ")
	code, convErr := strconv.Atoi(codeStr)
	if convErr != nil {
		return 0, "", errors.Wrapf(ErrMalformedResponse, "bad code %q", codeStr)
	}
	return code, strings.TrimSpace(message), nil
}

// FormatSimpleResponse builds the status line of a simple response.
func FormatSimpleResponse(code int, message string) string {
	return strconv.Itoa(code) + " " + SanitizeContent(message)
}
