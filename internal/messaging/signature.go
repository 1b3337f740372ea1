package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// ComputeSignature builds the provider webhook signature: HMAC-SHA1 over the
// canonical URL followed by the form parameters sorted by name, each appended
// as name+value, base64 encoded.
func ComputeSignature(secret, canonicalURL string, params url.Values) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var payload strings.Builder
	payload.WriteString(canonicalURL)
	for _, name := range names {
		for _, value := range params[name] {
			payload.WriteString(name)
			payload.WriteString(value)
		}
	}

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares a submitted signature header in constant time.
// An empty secret disables validation (local development).
func ValidSignature(secret, canonicalURL string, params url.Values, submitted string) bool {
	if secret == "" {
		return true
	}
	expected := ComputeSignature(secret, canonicalURL, params)
	return hmac.Equal([]byte(expected), []byte(submitted))
}
