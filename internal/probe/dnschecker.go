package probe

import (
	"context"
	"net/url"
)

type DNSChecker struct{}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{}
}

func (d *DNSChecker) Name() string { return "dns" }

func (d *DNSChecker) Check(ctx context.Context, target string) Result {
	dns := CheckDNS(ctx, extractHost(target))
	return Result{
		Name:    d.Name(),
		Success: dns.Class == ClassResolves,
		Message: dns.Class,
	}
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
