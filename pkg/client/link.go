package client

import (
	"net/http"
	"strings"
)

// parseLinkHeader parses a Link header of `<url>; rel="name"` pairs into a
// rel → url map. Malformed pairs are skipped.
func parseLinkHeader(value string) map[string]string {
	links := map[string]string{}

	for _, part := range strings.Split(value, ",") {
		fields := strings.SplitN(part, ";", 2)
		if len(fields) != 2 {
			continue
		}

		target := strings.Trim(strings.TrimSpace(fields[0]), "<>")
		rel := strings.TrimSpace(fields[1])

		rel, ok := strings.CutPrefix(rel, "rel=")
		if !ok {
			continue
		}
		rel = strings.Trim(rel, `"`)

		if target != "" && rel != "" {
			links[rel] = target
		}
	}

	return links
}

// hasNextPage reports whether the response's pagination hint indicates more
// pages exist.
func hasNextPage(headers http.Header) bool {
	link := headers.Get("Link")
	if link == "" {
		return false
	}
	_, ok := parseLinkHeader(link)["next"]
	return ok
}
