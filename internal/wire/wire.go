// Package wire holds the request-building glue every adapter shares:
// applying the extension bag to a serialized body, converting tool schemas
// to dynamic JSON, and deriving a transport spec from a profile.
package wire

import (
	"net/http"
	"time"

	"github.com/casualjim/modelbridge/internal/transport"
	"github.com/casualjim/modelbridge/pkg/jsonx"
	"github.com/casualjim/modelbridge/provider"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/sjson"
)

// ApplyExtra writes every extension-bag entry as a top-level wire field, in
// bag order. Keys already present in the body are overwritten: the bag is
// the caller's escape hatch and wins.
func ApplyExtra(body []byte, extra *provider.Extra) ([]byte, error) {
	if extra == nil {
		return body, nil
	}
	var err error
	for pair := extra.Oldest(); pair != nil; pair = pair.Next() {
		body, err = sjson.SetBytes(body, pair.Key, pair.Value)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// SchemaMap converts a tool parameter schema into a dynamic JSON object so
// it can be embedded into a provider body. Nil schemas become an empty
// object schema, which every vendor accepts.
func SchemaMap(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	return jsonx.ToDynamicJSON(s)
}

// Spec derives the transport spec for one provider call, folding in the
// profile's custom headers and network-path flags.
func Spec(profile provider.Profile, method, url string, header http.Header, body []byte, timeout time.Duration) transport.Spec {
	if header == nil {
		header = make(http.Header)
	}
	for k, v := range profile.Headers {
		header.Set(k, v)
	}
	return transport.Spec{
		Method:    method,
		URL:       url,
		Header:    header,
		Body:      body,
		Timeout:   timeout,
		Strategy:  transport.Strategy(profile.Strategy),
		TLSRelax:  profile.TLSRelax,
		HTTP1Only: profile.HTTP1Only,
		Proxy:     profile.Proxy,
	}
}
