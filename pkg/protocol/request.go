package protocol

import (
	"net/url"
)

// RequestType identifies both outbound requests and the events that come back.
type RequestType int

const (
	Unknown RequestType = iota
	Accept
	PlayerData
	Login
	Logout
	Shutdown
	Poll
	Move
	List
	New
	Join
	Leave
	Resign
	Draw
	Reset
	EJoin
	EEnd
	EScore
	PlayerStatus
	OutData
	Msg
)

var requestTokens = [...]string{
	Unknown:      "UNKNOWN",
	Accept:       "ACCEPT",
	PlayerData:   "PLAYER_DATA",
	Login:        "LOGIN",
	Logout:       "LOGOUT",
	Shutdown:     "SHUTDOWN",
	Poll:         "POLL",
	Move:         "MOVE",
	List:         "LIST",
	New:          "NEW",
	Join:         "JOIN",
	Leave:        "LEAVE",
	Resign:       "RESIGN",
	Draw:         "DRAW",
	Reset:        "RESET",
	EJoin:        "E_JOIN",
	EEnd:         "E_END",
	EScore:       "E_SCORE",
	PlayerStatus: "PLAYER_STATUS",
	OutData:      "OUT_DATA",
	Msg:          "MSG",
}

var requestTypes = func() map[string]RequestType {
	m := make(map[string]RequestType, len(requestTokens))
	for t, s := range requestTokens {
		m[s] = RequestType(t)
	}
	return m
}()

func (t RequestType) String() string {
	if t < 0 || int(t) >= len(requestTokens) {
		return requestTokens[Unknown]
	}
	return requestTokens[t]
}

// ParseRequestType maps a wire token to its type. Unrecognized tokens are Unknown, never an error.
func ParseRequestType(s string) RequestType {
	if t, ok := requestTypes[s]; ok {
		return t
	}
	return Unknown
}

func (t RequestType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *RequestType) UnmarshalText(b []byte) error {
	*t = ParseRequestType(string(b))
	return nil
}

// RequestPathPrefix is the fixed template every command is embedded into.
const RequestPathPrefix = "/cchess/tables.php"

// RequestPath builds the request path for a command query.
func RequestPath(query url.Values) string {
	return RequestPathPrefix + "?" + query.Encode()
}
