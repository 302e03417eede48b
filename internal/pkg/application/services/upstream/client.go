// Package upstream implements the upstream client: it issues a single
// OPTIMADE request against one database and classifies
// the result as an ok response, an upstream error, or a transport
// error. It never retries — retry policy belongs above it, and for
// this gateway there is none.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TransportErrorKind enumerates the transport_error.kind values a
// failed fetch can report.
type TransportErrorKind string

const (
	KindTimeout TransportErrorKind = "timeout"
	KindDNS     TransportErrorKind = "dns"
	KindConnect TransportErrorKind = "connect"
	KindTLS     TransportErrorKind = "tls"
	KindRead    TransportErrorKind = "read"
	KindDecode  TransportErrorKind = "decode"
)

// Outcome is the tagged union a fetch returns: exactly one of OK,
// UpstreamError, TransportError is set.
type Outcome struct {
	OK            json.RawMessage
	UpstreamError *UpstreamError
	TransportErr  *TransportError
}

// IsOK reports whether the outcome is a successful response.
func (o Outcome) IsOK() bool { return o.OK != nil }

// UpstreamError is a non-2xx response with a decodable body.
type UpstreamError struct {
	Status int
	Body   json.RawMessage
}

// TransportError is any failure that never reached a decodable HTTP
// response.
type TransportError struct {
	Kind    TransportErrorKind
	Message string
}

// Client fetches one OPTIMADE request. Implementations must not retry.
type Client interface {
	Fetch(ctx context.Context, db domain.Database, endpoint string, query url.Values, timeout time.Duration) Outcome
}

// httpClient is the Client implementation bound to net/http, instrumented
// with OpenTelemetry via otelhttp.NewTransport(http.DefaultTransport).
type httpClient struct{}

// NewClient returns the default, net/http-backed Client.
func NewClient() Client {
	return httpClient{}
}

// versionPathPrefix is the OPTIMADE major-version path segment every
// request is issued under.
const versionPathPrefix = "/v1"

func (httpClient) Fetch(ctx context.Context, db domain.Database, endpoint string, query url.Values, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	requestURL := strings.TrimSuffix(db.BaseURL, "/") + versionPathPrefix + "/" + strings.TrimPrefix(endpoint, "/")
	if encoded := query.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return Outcome{TransportErr: &TransportError{Kind: KindConnect, Message: err.Error()}}
	}
	req.Header.Set("Accept", "application/vnd.api+json")

	client := http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	resp, err := client.Do(req)
	if err != nil {
		return Outcome{TransportErr: classifyRequestError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{TransportErr: classifyReadError(err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if json.Valid(body) {
			return Outcome{UpstreamError: &UpstreamError{Status: resp.StatusCode, Body: body}}
		}
		return Outcome{TransportErr: &TransportError{Kind: KindDecode, Message: fmt.Sprintf("non-JSON body with status %d", resp.StatusCode)}}
	}

	if !hasDataOrErrors(body) {
		return Outcome{TransportErr: &TransportError{Kind: KindDecode, Message: "response body has neither 'data' nor 'errors'"}}
	}

	return Outcome{OK: body}
}

// hasDataOrErrors reports whether body decodes as a JSON object with a
// top-level "data" or "errors" member, the criterion for treating a 2xx
// response as a genuine OPTIMADE response rather than a decode failure.
// The member's JSON type is not checked, so a single-entry response
// whose "data" is an object qualifies as well as a listing.
func hasDataOrErrors(body []byte) bool {
	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return len(envelope.Data) > 0 || len(envelope.Errors) > 0
}

func classifyRequestError(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Message: err.Error()}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &TransportError{Kind: KindDNS, Message: err.Error()}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "tls" || strings.Contains(err.Error(), "tls") || strings.Contains(err.Error(), "certificate") {
			return &TransportError{Kind: KindTLS, Message: err.Error()}
		}
		return &TransportError{Kind: KindConnect, Message: err.Error()}
	}

	if strings.Contains(err.Error(), "context deadline exceeded") {
		return &TransportError{Kind: KindTimeout, Message: err.Error()}
	}

	return &TransportError{Kind: KindConnect, Message: err.Error()}
}

func classifyReadError(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Message: err.Error()}
	}
	return &TransportError{Kind: KindRead, Message: err.Error()}
}
