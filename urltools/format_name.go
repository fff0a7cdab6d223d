// format_name.go classifies output locations and guesses their container formats.

package urltools

import (
	"net/url"
	"path/filepath"
	"slices"
	"strings"
)

func FormatNameFromFileExtension(path string) string {
	switch {
	case hasFileExtension(path, ".flv"):
		return "flv"
	case hasFileExtension(path, ".mp4", ".m4v", ".mov"):
		return "mp4"
	case hasFileExtension(path, ".mkv"):
		return "matroska"
	case hasFileExtension(path, ".ts", ".mts", ".m2ts"):
		return "mpegts"
	default:
		return ""
	}
}

func hasFileExtension(path string, exts ...string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
}

// IsFileURL reports whether the location refers to the local file system
// rather than to a network endpoint.
func IsFileURL(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return isFileScheme(u.Scheme)
}

func isFileScheme(scheme string) bool {
	switch scheme {
	case "file", "":
		return true
	case "rtmp", "rtmps", "srt", "udp", "tcp", "http", "https", "rtsp":
		return false
	}
	// a drive letter of a Windows path
	return len(scheme) == 1
}
