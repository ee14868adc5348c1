package chat

import (
	"net/url"
	"slices"
	"strings"
)

// validateAttachmentURL accepts only well-formed https URLs pointing at an
// approved storage host. The three failure modes carry distinct messages so
// the client can tell a bad scheme from a bad host from garbage input.
func validateAttachmentURL(raw string, allowedHosts []string) error {
	if strings.TrimSpace(raw) == "" {
		return reject(msgAttachmentMalform)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return reject(msgAttachmentMalform)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return reject(msgAttachmentScheme)
	}
	if !slices.Contains(allowedHosts, u.Hostname()) {
		return reject(msgAttachmentHost)
	}
	return nil
}
