package service

import (
	"context"
	"net"
	"strings"

	"fitzone/internal/utils"
)

type mxResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// MXDomainChecker reports a domain as reachable when it publishes at least one
// MX record. Lookup failures and timeouts count as unreachable.
type MXDomainChecker struct {
	Resolver mxResolver
}

func NewMXDomainChecker() *MXDomainChecker {
	return &MXDomainChecker{Resolver: net.DefaultResolver}
}

func (c *MXDomainChecker) IsDomainReachable(ctx context.Context, email string) bool {
	domain := utils.EmailDomain(email)
	if domain == "" {
		return false
	}
	resolver := c.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	records, err := resolver.LookupMX(ctx, domain)
	if err != nil {
		return false
	}
	for _, record := range records {
		if record != nil && strings.TrimSuffix(record.Host, ".") != "" {
			return true
		}
	}
	return false
}
