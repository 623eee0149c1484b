package tonconnect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/pkg/errors"
)

const (
	manifestTimeout = 10 * time.Second
	manifestRetries = 2
	// manifests are small JSON documents
	maxManifestSize = 1 << 20
)

func newManifestClient() *httpclient.Client {
	return httpclient.NewClient(
		httpclient.WithHTTPTimeout(manifestTimeout),
		httpclient.WithRetryCount(manifestRetries),
		httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(200*time.Millisecond, 100*time.Millisecond))),
	)
}

func (a *Adapter) fetchManifest(ctx context.Context, manifestURL string) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, errors.Wrap(ErrManifestNotFound, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrManifestNotFound, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrManifestNotFound, "status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, errors.Wrap(ErrManifestNotFound, err.Error())
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, errors.Wrap(ErrManifestContentError, err.Error())
	}
	if m.Name == "" || m.URL == "" {
		return nil, errors.Wrap(ErrManifestContentError, "url and name are required")
	}
	if _, err := url.ParseRequestURI(m.URL); err != nil {
		return nil, errors.Wrap(ErrManifestContentError, "url")
	}
	return &m, nil
}
