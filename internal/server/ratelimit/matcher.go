package ratelimit

import "strings"

// MatchEndpoint picks the budget for a request. An exact path wins; otherwise
// the longest configured "/"-terminated prefix with the same method applies,
// so "/jobs/" covers "/jobs/{id}" and "/jobs/{id}/events". It returns nil when
// the global default applies. GET /health is never limited.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && path == "/health" {
		return &EndpointConfig{Path: path, Method: method}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}
