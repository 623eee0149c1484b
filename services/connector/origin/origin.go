// Package origin derives the identity of a dApp from whatever the transport
// told us about it.
package origin

import (
	"errors"
	"net/url"
	"strings"
)

const faviconPath = "/favicon.ico"

// ErrMissingURL is returned when an operation needs the origin identity but
// the sender supplied no usable url.
var ErrMissingURL = errors.New("origin has no url")

// Origin describes a dApp.
type Origin struct {
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	FaviconURL string `json:"faviconUrl,omitempty"`
}

// Sender is the dApp description supplied by a transport.
type Sender struct {
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// PageMetadata is what the page itself declares (document title, icon link).
type PageMetadata struct {
	Title string `json:"title,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// Resolve builds the canonical Origin. Title falls back from page metadata
// to the sender title to the hostname, icon from page metadata to the sender
// image to the origin favicon.
func Resolve(sender Sender, meta *PageMetadata) Origin {
	o := Origin{URL: sender.URL}

	u := parse(sender.URL)

	switch {
	case meta != nil && strings.TrimSpace(meta.Title) != "":
		o.Title = strings.TrimSpace(meta.Title)
	case strings.TrimSpace(sender.Title) != "":
		o.Title = strings.TrimSpace(sender.Title)
	case u != nil:
		o.Title = u.Hostname()
	}

	switch {
	case meta != nil && meta.Icon != "":
		o.FaviconURL = absolute(u, meta.Icon)
	case sender.ImageURL != "":
		o.FaviconURL = absolute(u, sender.ImageURL)
	case u != nil:
		o.FaviconURL = u.Scheme + "://" + u.Host + faviconPath
	}

	return o
}

// Key is the scheme+host identity used for connection lookups.
func (o Origin) Key() string {
	return Key(o.URL)
}

// Key returns the scheme+host of rawURL, or "" when it has no host.
func Key(rawURL string) string {
	u := parse(rawURL)
	if u == nil {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// Hostname of the origin url.
func (o Origin) Hostname() string {
	u := parse(o.URL)
	if u == nil {
		return ""
	}
	return u.Hostname()
}

func parse(rawURL string) *url.URL {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

// absolute resolves relative icon paths against the dApp url.
func absolute(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
