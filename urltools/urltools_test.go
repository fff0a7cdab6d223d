package urltools

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/secret"
)

func TestRTMPLocation(t *testing.T) {
	for _, tc := range []struct {
		url      string
		key      string
		expected string
		err      bool
	}{
		{url: "rtmp://example.com/live", key: "abc", expected: "rtmp://example.com:1935/live/abc"},
		{url: "rtmp://example.com:1936/live/", key: "abc", expected: "rtmp://example.com:1936/live/abc"},
		{url: "rtmps://example.com/app", key: "", expected: "rtmps://example.com:443/app"},
		{url: "http://example.com/app", err: true},
	} {
		t.Run(tc.url, func(t *testing.T) {
			loc, err := RTMPLocation(tc.url, secret.New(tc.key))
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, loc)
		})
	}
}

func TestFormatName(t *testing.T) {
	require.Equal(t, "flv", FormatNameFromFileExtension("/tmp/out.FLV"))
	require.Equal(t, "", FormatNameFromFileExtension("/tmp/out"))
	require.True(t, IsFileURL("/tmp/out.flv"))
	require.False(t, IsFileURL("rtmp://example.com/live"))
	require.True(t, IsFileURL("file:///tmp/out.flv"))
}
