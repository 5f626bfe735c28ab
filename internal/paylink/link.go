package paylink

import (
	"fmt"
	"strings"
)

// DefaultDomain is the hosted paylink domain used when no override is
// configured.
const DefaultDomain = "guto.me"

// Builder derives the canonical shareable URL for a merchant handle.
type Builder struct {
	domain string
}

// NewBuilder creates a Builder for the given payment domain. An empty
// domain falls back to DefaultDomain.
func NewBuilder(domain string) *Builder {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Builder{domain: domain}
}

// Build returns the deep link https://<domain>/@<handle>, appending an
// amount query parameter only when amount is positive. A leading @ on the
// handle is tolerated and collapsed.
func (b *Builder) Build(handle string, amount int64) string {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	link := fmt.Sprintf("https://%s/@%s", b.domain, handle)
	if amount > 0 {
		link = fmt.Sprintf("%s?amount=%d", link, amount)
	}
	return link
}
