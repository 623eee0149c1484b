package tonconnect

import (
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
)

const (
	schemeTonConnect = "tc"
	universalPath    = "/tonconnect"

	paramVersion = "v"
	paramID      = "id"
	paramRequest = "r"
	paramReturn  = "ret"

	defaultReturnStrategy = "back"
)

// DeepLink is a parsed connect link. ClientID may be set even when parsing
// failed, so the error can be reported to the dApp.
type DeepLink struct {
	Version        int
	ClientID       string
	Request        ConnectRequest
	ReturnStrategy string
}

// IsDeepLink reports whether raw looks like a connect link, without
// validating its parameters.
func IsDeepLink(raw, universalHost string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return isConnectURL(u, universalHost)
}

func isConnectURL(u *url.URL, universalHost string) bool {
	if u.Scheme == schemeTonConnect {
		return true
	}
	if u.Scheme != "https" || !strings.HasSuffix(u.Path, universalPath) {
		return false
	}
	return universalHost == "" || u.Host == universalHost
}

func validClientID(id string) bool {
	raw, err := hex.DecodeString(id)
	return err == nil && len(raw) == 32
}

// ParseDeepLink reads v, id, r and ret from a tc:// or universal link.
// Versions above maxVersion are refused.
func ParseDeepLink(raw, universalHost string, maxVersion int) (*DeepLink, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(ErrUnsupportedLink, err.Error())
	}
	if !isConnectURL(u, universalHost) {
		return nil, ErrUnsupportedLink
	}

	q := u.Query()
	link := &DeepLink{ReturnStrategy: q.Get(paramReturn)}
	if link.ReturnStrategy == "" {
		link.ReturnStrategy = defaultReturnStrategy
	}
	if id := q.Get(paramID); validClientID(id) {
		link.ClientID = id
	}

	v := q.Get(paramVersion)
	if v == "" || link.ClientID == "" || q.Get(paramRequest) == "" {
		return link, ErrMissingParams
	}

	requested, err := version.NewVersion(v)
	if err != nil {
		return link, errors.Wrap(ErrMissingParams, "bad version")
	}
	supported := version.Must(version.NewVersion(strconv.Itoa(maxVersion)))
	if requested.GreaterThan(supported) {
		return link, ErrUnsupportedVersion
	}
	link.Version = requested.Segments()[0]

	if err := json.Unmarshal([]byte(q.Get(paramRequest)), &link.Request); err != nil {
		return link, errors.Wrap(ErrMissingParams, "connect request is not valid JSON")
	}
	if link.Request.ManifestURL == "" {
		return link, errors.Wrap(ErrMissingParams, "manifestUrl")
	}
	return link, nil
}
