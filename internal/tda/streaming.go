package tda

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"tda-gateway/internal/logger"
	"tda-gateway/internal/stream"
	"tda-gateway/internal/types"
)

// Streaming protocol messages. A session starts with a LOGIN and one
// SUBS request batched into a single send, and ends with a LOGOUT
// followed by an orderly close of the transport.

const (
	loginRequestID  = 1
	subsRequestID   = 2
	logoutRequestID = 3

	// Token issue time as delivered in the principals,
	// e.g. 2021-08-10T14:57:11+0000.
	tokenTimestampLayout = "2006-01-02T15:04:05-0700"

	// Quote fields 0-8: symbol, bid, ask, last, bid size, ask size,
	// ask id, bid id, total volume.
	defaultQuoteFields = "0,1,2,3,4,5,6,7,8"
)

type streamRequest struct {
	Service    string            `json:"service"`
	Command    string            `json:"command"`
	RequestID  int               `json:"requestid"`
	Account    string            `json:"account"`
	Source     string            `json:"source"`
	Parameters map[string]string `json:"parameters"`
}

type streamBatch struct {
	Requests []streamRequest `json:"requests"`
}

// credentialPair keeps the protocol-defined field order of the login
// credential string.
type credentialPair struct {
	key, value string
}

// credentialString joins the pairs as key%3Dvalue separated by an
// escaped ampersand, with no trailing separator.
func credentialString(pairs []credentialPair) string {
	out := ""
	for i, pair := range pairs {
		if i > 0 {
			out += "%26"
		}
		out += pair.key + "%3D" + pair.value
	}
	return out
}

// loginTimestamp converts the streamer token issue time to UTC epoch
// milliseconds. The offset suffix is honoured rather than compensated
// with fixed corrective constants.
func loginTimestamp(raw string) (int64, error) {
	t, err := time.Parse(tokenTimestampLayout, raw)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// createLoginRequest assembles the ADMIN LOGIN request from the cached
// principals. A token timestamp that fails to parse is logged and the
// timestamp field omitted; the remaining credentials still go out.
func (c *Client) createLoginRequest(ctx context.Context, principals types.UserPrincipals) streamRequest {
	account := principals.Active
	streamer := principals.Streamer

	pairs := []credentialPair{
		{"userid", account["accountId"]},
		{"company", account["company"]},
		{"segment", account["segment"]},
		{"cddomain", account["accountCdDomainId"]},
		{"usergroup", streamer.UserGroup},
		{"accesslevel", streamer.AccessLevel},
		{"authorized", "Y"},
		{"acl", streamer.ACL},
	}
	if ms, err := loginTimestamp(streamer.TokenTimestamp); err != nil {
		logger.Warn(ctx, "Token timestamp parse failed", "raw", streamer.TokenTimestamp, "error", err)
	} else {
		pairs = append(pairs, credentialPair{"timestamp", strconv.FormatInt(ms, 10)})
	}
	pairs = append(pairs, credentialPair{"appid", streamer.AppID})

	return streamRequest{
		Service:   types.ServiceAdmin.APIName(),
		Command:   "LOGIN",
		RequestID: loginRequestID,
		Account:   account["accountId"],
		Source:    streamer.AppID,
		Parameters: map[string]string{
			"token":      streamer.Token,
			"version":    "1.0",
			"credential": credentialString(pairs),
		},
	}
}

// createServiceRequest assembles a SUBS request for a streaming service.
func (c *Client) createServiceRequest(principals types.UserPrincipals,
	service types.ServiceType, keys, fields string) streamRequest {

	return streamRequest{
		Service:   service.APIName(),
		Command:   "SUBS",
		RequestID: subsRequestID,
		Account:   principals.Active["accountId"],
		Source:    principals.Streamer.AppID,
		Parameters: map[string]string{
			"keys":   keys,
			"fields": fields,
		},
	}
}

// createLogoutRequest assembles the ADMIN LOGOUT request.
func (c *Client) createLogoutRequest(principals types.UserPrincipals) streamRequest {
	return streamRequest{
		Service:    types.ServiceAdmin.APIName(),
		Command:    "LOGOUT",
		RequestID:  logoutRequestID,
		Account:    principals.Active["accountId"],
		Source:     principals.Streamer.AppID,
		Parameters: map[string]string{},
	}
}

// StartSession resolves the streaming host from the principals, opens
// the transport, and sends the login plus a QUOTE subscription for
// ticker as one batch. Inbound frames are delivered to sink.
func (c *Client) StartSession(ctx context.Context, ticker string, sink stream.Sink) error {
	principals, err := c.ensurePrincipals(ctx)
	if err != nil {
		return err
	}
	host := principals.Streamer.SocketURL
	if host == "" {
		return &TransportError{Op: "StartSession", Err: ErrNoStreamerHost}
	}

	batch := streamBatch{Requests: []streamRequest{
		c.createLoginRequest(ctx, principals),
		c.createServiceRequest(principals, types.ServiceQuote, ticker, defaultQuoteFields),
	}}
	payload, err := json.Marshal(batch)
	if err != nil {
		return &TransportError{Op: "StartSession", Err: err}
	}

	socket := stream.NewSocket(sink)
	endpoint := c.p.StreamerScheme + "://" + host + streamerEndpointPath
	if err := socket.Open(ctx, endpoint); err != nil {
		return &TransportError{Op: "StartSession", Err: err}
	}
	if err := socket.Write(string(payload)); err != nil {
		socket.Close()
		return &TransportError{Op: "StartSession", Err: err}
	}

	c.socket = socket
	logger.Session(ctx, "started", host, "ticker", ticker)
	return nil
}

// SendLogoutRequest sends the logout payload and closes the transport.
// The socket is released regardless of the write outcome.
func (c *Client) SendLogoutRequest(ctx context.Context) error {
	socket := c.socket
	if socket == nil {
		return &TransportError{Op: "SendLogoutRequest", Err: ErrNoSession}
	}

	principals, err := c.ensurePrincipals(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(c.createLogoutRequest(principals))
	if err != nil {
		return &TransportError{Op: "SendLogoutRequest", Err: err}
	}

	writeErr := socket.Write(string(payload))
	closeErr := socket.Close()
	c.socket = nil

	if writeErr != nil {
		return &TransportError{Op: "SendLogoutRequest", Err: writeErr}
	}
	if closeErr != nil {
		return &TransportError{Op: "SendLogoutRequest", Err: closeErr}
	}
	logger.Session(ctx, "closed", principals.Streamer.SocketURL)
	return nil
}
