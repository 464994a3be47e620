package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/selimozcann/statuspeek/internal/model"
	"github.com/selimozcann/statuspeek/internal/trace"
)

// Method selects the request method used for each hop.
type Method string

const (
	// MethodHead issues HEAD and falls back to GET when the origin rejects it.
	MethodHead Method = "head"
	MethodGet  Method = "get"
)

// drainLimit caps how much of a GET body is read before closing, enough to
// let small bodies release the connection back to the pool.
const drainLimit = 64 << 10

// Transport issues single unfollowed requests for the tracer.
type Transport struct {
	client *http.Client
	method Method
	logger *zap.Logger
}

var _ trace.Transport = (*Transport)(nil)

// NewTransport wraps client. The client must not follow redirects; New
// returns one that doesn't.
func NewTransport(client *http.Client, method Method, logger *zap.Logger) *Transport {
	if method == "" {
		method = MethodHead
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{client: client, method: method, logger: logger}
}

// Do implements trace.Transport.
func (t *Transport) Do(ctx context.Context, target string) (*trace.Response, error) {
	if t.method == MethodGet {
		return t.issue(ctx, http.MethodGet, target)
	}
	resp, err := t.issue(ctx, http.MethodHead, target)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		t.logger.Debug("HEAD rejected, retrying with GET",
			zap.String("url", target),
			zap.Int("status", resp.StatusCode))
		return t.issue(ctx, http.MethodGet, target)
	}
	return resp, nil
}

func (t *Transport) issue(ctx context.Context, method, target string) (*trace.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, &model.TransportError{Kind: model.ErrTransportOther, Message: err.Error(), Err: err}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer resp.Body.Close()
	if method != http.MethodHead {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	}
	return &trace.Response{StatusCode: resp.StatusCode, Header: resp.Header}, nil
}

// ClassifyError maps a client error to a TransportError kind.
func ClassifyError(err error) *model.TransportError {
	te := &model.TransportError{Kind: model.ErrTransportOther, Message: err.Error(), Err: err}

	var (
		dnsErr     *net.DNSError
		verifyErr  *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		netErr     net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		te.Kind = model.ErrTimeout
	case errors.As(err, &dnsErr):
		te.Kind = model.ErrDNSFailure
	case errors.As(err, &verifyErr), errors.As(err, &unknownCA), errors.As(err, &hostErr),
		errors.As(err, &invalidErr), errors.As(err, &recordErr), errors.As(err, &alertErr):
		te.Kind = model.ErrTLSFailure
	case errors.Is(err, syscall.ECONNREFUSED):
		te.Kind = model.ErrConnectionRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		te.Kind = model.ErrTimeout
	case strings.Contains(err.Error(), "tls: "):
		te.Kind = model.ErrTLSFailure
	}
	return te
}
