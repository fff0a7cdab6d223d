// rtmp.go builds the location of an RTMP endpoint.

package urltools

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xaionaro-go/secret"
)

// RTMPLocation appends the stream key (if any) to the path of the RTMP URL
// and adds the default port of the scheme if none is set.
func RTMPLocation(rawURL string, streamKey secret.String) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("unable to parse URL '%s': %w", rawURL, err)
	}
	switch u.Scheme {
	case "rtmp", "rtmps":
	default:
		return "", fmt.Errorf("unexpected scheme '%s', expected rtmp or rtmps", u.Scheme)
	}
	if u.Port() == "" {
		switch u.Scheme {
		case "rtmp":
			u.Host += ":1935"
		case "rtmps":
			u.Host += ":443"
		}
	}

	if streamKey.Get() != "" {
		switch {
		case u.Path == "" || u.Path == "/":
			u.Path = "//"
		case !strings.HasSuffix(u.Path, "/"):
			u.Path += "/"
		}
		u.Path += streamKey.Get()
	}
	return u.String(), nil
}
