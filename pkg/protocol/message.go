package protocol

import "net/url"

// Request is a query queued on a connection.
type Request struct {
	Type    RequestType `json:"type"`
	Content string      `json:"content"`
}

// NewRequest builds a request whose content carries op=<type> plus the given parameters.
func NewRequest(t RequestType, params url.Values) Request {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("op", t.String())
	return Request{Type: t, Content: RequestPath(q)}
}

// Response is the eventual reply to a Request. Err is set on transport failure,
// in which case Content is empty. Query is the Content of the request answered.
type Response struct {
	Type    RequestType `json:"type"`
	Content string      `json:"content"`
	Query   string      `json:"-"`
	Err     error       `json:"-"`
}
