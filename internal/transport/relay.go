package transport

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/casualjim/modelbridge/provider"
	json "github.com/goccy/go-json"
)

// relayEnvelope is the wire shape of the side-channel call to the local
// relay process. The relay performs the described request on our behalf and
// streams back a response equivalent to a direct call.
type relayEnvelope struct {
	TargetURL string            `json:"targetUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	TimeoutMS int64             `json:"timeout,omitempty"`
	TLSRelax  bool              `json:"tlsRelax,omitempty"`
	HTTP1Only bool              `json:"http1Only,omitempty"`
	Proxy     string            `json:"proxySettings,omitempty"`
}

// sendRelay wraps the request as a single-purpose POST to the local relay.
func (c *Client) sendRelay(ctx context.Context, spec Spec, timeout time.Duration) (*Handle, error) {
	env := relayEnvelope{
		TargetURL: spec.URL,
		Method:    spec.Method,
		Body:      string(spec.Body),
		TimeoutMS: timeout.Milliseconds(),
		TLSRelax:  spec.TLSRelax,
		HTTP1Only: spec.HTTP1Only,
		Proxy:     spec.Proxy,
	}
	if len(spec.Header) > 0 {
		env.Headers = make(map[string]string, len(spec.Header))
		for k := range spec.Header {
			env.Headers[k] = spec.Header.Get(k)
		}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, &provider.ConnectivityError{Op: "relay", URL: c.relayURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &provider.ConnectivityError{Op: "relay", URL: c.relayURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("dispatching via relay", slog.String("target", spec.URL))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.mapSendErr(ctx, Spec{Method: "relay", URL: c.relayURL}, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp)
	}

	return &Handle{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}
