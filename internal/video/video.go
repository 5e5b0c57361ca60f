package video

import "regexp"

var idPattern = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11}).*`)

// ExtractID returns the 11 character YouTube video id in url, or "".
func ExtractID(url string) string {
	m := idPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
