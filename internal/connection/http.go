package connection

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/pkg/errors"
)

const maxBodySize = 1 << 20

var ErrBodyTooLarge = errors.New("response body too large")

type httpTripper struct {
	baseURL string
	client  *http.Client
}

// NewHTTP polls a server whose commands live under baseURL, e.g. http://host:8080.
func NewHTTP(baseURL string, timeout time.Duration) *Conn {
	return newConn(&httpTripper{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}, timeout)
}

// DialHTTP has the shape of a dial strategy; HTTP needs no handshake.
func DialHTTP(baseURL string, timeout time.Duration) (Connection, error) {
	return NewHTTP(baseURL, timeout), nil
}

func (h *httpTripper) roundTrip(ctx context.Context, req protocol.Request) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+req.Content, nil)
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return "", errors.Wrap(err, "read body")
	}
	if len(body) > maxBodySize {
		return "", errors.Wrapf(ErrBodyTooLarge, "more than %d bytes", maxBodySize)
	}
	return string(body), nil
}

func (h *httpTripper) close() error {
	h.client.CloseIdleConnections()
	return nil
}
