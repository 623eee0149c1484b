package origin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		name   string
		sender Sender
		meta   *PageMetadata
		want   Origin
	}{
		{
			name:   "page metadata wins",
			sender: Sender{Title: "Sender", URL: "https://dapp.example/swap?x=1", ImageURL: "https://cdn.example/i.png"},
			meta:   &PageMetadata{Title: " Page ", Icon: "/static/icon.png"},
			want:   Origin{Title: "Page", URL: "https://dapp.example/swap?x=1", FaviconURL: "https://dapp.example/static/icon.png"},
		},
		{
			name:   "sender fallback",
			sender: Sender{Title: "Sender", URL: "https://dapp.example", ImageURL: "https://cdn.example/i.png"},
			meta:   &PageMetadata{},
			want:   Origin{Title: "Sender", URL: "https://dapp.example", FaviconURL: "https://cdn.example/i.png"},
		},
		{
			name:   "hostname and favicon fallback",
			sender: Sender{URL: "https://app.dapp.example:8443/path"},
			want:   Origin{Title: "app.dapp.example", URL: "https://app.dapp.example:8443/path", FaviconURL: "https://app.dapp.example:8443/favicon.ico"},
		},
		{
			name:   "no url at all",
			sender: Sender{Title: "Anonymous"},
			want:   Origin{Title: "Anonymous"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Resolve(tc.sender, tc.meta))
		})
	}
}

func TestKey(t *testing.T) {
	require.Equal(t, "https://dapp.example", Key("https://DApp.example/some/path?q=1#frag"))
	require.Equal(t, "https://dapp.example:8443", Key("https://dapp.example:8443/x"))
	require.Equal(t, "https://dapp.example", Key("dapp.example"))
	require.Equal(t, "", Key(""))
	require.Equal(t, "", Key("https://"))

	o := Origin{URL: "https://dapp.example/a"}
	require.Equal(t, Key("https://dapp.example/b"), o.Key())
	require.Equal(t, "dapp.example", o.Hostname())
}
