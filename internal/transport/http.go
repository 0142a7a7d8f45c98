package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// DefaultHTTPClient speaks HTTP/2 to TLS servers and HTTP/1.1 otherwise.
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	_ = http2.ConfigureTransport(tr)
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}

type HTTPTransferOption func(*HTTPTransfer)

func HTTPWithClient(c *http.Client) HTTPTransferOption {
	return func(t *HTTPTransfer) {
		t.client = c
	}
}

// HTTPWithHeaders adds headers to every request, e.g. authorization.
func HTTPWithHeaders(h map[string]string) HTTPTransferOption {
	return func(t *HTTPTransfer) {
		t.headers = h
	}
}

type HTTPTransfer struct {
	client  *http.Client
	headers map[string]string
}

func NewHTTPTransfer(opts ...HTTPTransferOption) *HTTPTransfer {
	ht := &HTTPTransfer{
		client: DefaultHTTPClient(0),
	}
	for _, opt := range opts {
		opt(ht)
	}
	return ht
}

type HTTPRequestOption func(*http.Request)

func HTTPRequestHeaders(h map[string]string) HTTPRequestOption {
	return func(req *http.Request) {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}
}

type HTTPResponseCallback func(*http.Response) error

func (ht *HTTPTransfer) Do(
	ctx context.Context,
	method, url string,
	respCb HTTPResponseCallback,
	reqOpts ...HTTPRequestOption,
) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}

	HTTPRequestHeaders(ht.headers)(req)
	for _, opt := range reqOpts {
		opt(req)
	}

	resp, err := ht.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return respCb(resp)
}

func (ht *HTTPTransfer) Get(ctx context.Context, url string, respCb HTTPResponseCallback, reqOpts ...HTTPRequestOption) error {
	return ht.Do(ctx, http.MethodGet, url, respCb, reqOpts...)
}

// Download copies the body of url into w.
func (ht *HTTPTransfer) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	var n int64
	err := ht.Get(ctx, url, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %s", resp.Status)
		}
		var err error
		n, err = io.Copy(w, resp.Body)
		return err
	})
	return n, err
}
