package relay

import (
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

const (
	uriScheme       = "wc"
	protocolVersion = "2"
	relayProtocol   = "irn"
)

var (
	ErrInvalidURI         = errors.New("invalid WalletConnect pairing uri")
	ErrUnsupportedVersion = errors.New("unsupported WalletConnect version")
)

// PairingURI is a v2 pairing uri, wc:<topic>@2?relay-protocol=irn&symKey=<hex>.
type PairingURI struct {
	Topic         string
	SymKey        []byte
	RelayProtocol string
	ExpiryTime    int64
}

func ParsePairingURI(raw string) (*PairingURI, error) {
	if !strings.HasPrefix(raw, uriScheme+":") {
		return nil, ErrInvalidURI
	}
	rest := strings.TrimPrefix(raw, uriScheme+":")

	path, rawQuery, _ := strings.Cut(rest, "?")
	topic, version, ok := strings.Cut(path, "@")
	if !ok || topic == "" {
		return nil, ErrInvalidURI
	}
	if version != protocolVersion {
		return nil, ErrUnsupportedVersion
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, ErrInvalidURI
	}
	symKey, err := hex.DecodeString(query.Get("symKey"))
	if err != nil || len(symKey) != KeyLength {
		return nil, ErrInvalidURI
	}

	uri := &PairingURI{
		Topic:         topic,
		SymKey:        symKey,
		RelayProtocol: query.Get("relay-protocol"),
	}
	if uri.RelayProtocol == "" {
		uri.RelayProtocol = relayProtocol
	}
	if expiry := query.Get("expiryTimestamp"); expiry != "" {
		if uri.ExpiryTime, err = strconv.ParseInt(expiry, 10, 64); err != nil {
			return nil, ErrInvalidURI
		}
	}
	return uri, nil
}

func (u *PairingURI) String() string {
	query := url.Values{}
	query.Set("relay-protocol", u.RelayProtocol)
	query.Set("symKey", hex.EncodeToString(u.SymKey))
	if u.ExpiryTime != 0 {
		query.Set("expiryTimestamp", strconv.FormatInt(u.ExpiryTime, 10))
	}
	return uriScheme + ":" + u.Topic + "@" + protocolVersion + "?" + query.Encode()
}
