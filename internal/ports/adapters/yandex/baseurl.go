package yandex

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultSTTURL = "https://stt.api.cloud.yandex.net"
	DefaultLLMURL = "https://llm.api.cloud.yandex.net"
	DefaultTTSURL = "https://tts.api.cloud.yandex.net"
)

var defaultAllowedHosts = map[string]struct{}{
	"stt.api.cloud.yandex.net": {},
	"llm.api.cloud.yandex.net": {},
	"tts.api.cloud.yandex.net": {},
}

func normalizeBaseURL(baseURL, def string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = def
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL checks an endpoint override. name is the env variable it came from.
func ValidateBaseURL(name, baseURL string, allowedHosts []string) error {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid %s %q: absolute URL with host is required", name, baseURL)
	}
	if u.User != nil {
		return fmt.Errorf("invalid %s %q: userinfo is not allowed", name, baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid %s %q: query and fragment are not allowed", name, baseURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("invalid %s %q: host is required", name, baseURL)
	}
	if scheme != "https" {
		return fmt.Errorf("invalid %s %q: https is required", name, baseURL)
	}

	allowed := normalizeAllowedHosts(allowedHosts)
	if _, ok := allowed[host]; !ok {
		return fmt.Errorf("invalid %s %q: host %q is not in YANDEX_ALLOWED_HOSTS", name, baseURL, host)
	}
	return nil
}

func normalizeAllowedHosts(allowedHosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(defaultAllowedHosts)+len(allowedHosts))
	for h := range defaultAllowedHosts {
		out[h] = struct{}{}
	}
	for _, h := range allowedHosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if v == "" {
			continue
		}
		if i := strings.Index(v, ":"); i >= 0 {
			v = v[:i]
		}
		out[v] = struct{}{}
	}
	return out
}
