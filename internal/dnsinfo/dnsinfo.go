// Package dnsinfo records which addresses a monitored hostname resolves to.
// Like the other enrichment steps, it is best-effort: failures return nil
// and never affect the check status.
package dnsinfo

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/miekg/dns"
)

const queryTimeout = 5 * time.Second

// Resolver queries configured DNS servers for A and AAAA records.
type Resolver struct {
	servers []string // "ip:port"
	client  *dns.Client
}

// New creates a Resolver using the given servers, tried in order.
func New(servers []string) *Resolver {
	if len(servers) == 0 {
		servers = []string{"1.1.1.1:53", "8.8.8.8:53"}
	}
	return &Resolver{
		servers: servers,
		client:  &dns.Client{Timeout: queryTimeout},
	}
}

// ResolvedIPs returns the addresses host resolves to, A records first.
// A nil slice means resolution failed everywhere.
func (r *Resolver) ResolvedIPs(ctx context.Context, host string) []string {
	if ip := net.ParseIP(host); ip != nil {
		return []string{host}
	}

	var ips []string
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		ips = append(ips, r.lookup(ctx, host, qtype)...)
	}
	if len(ips) == 0 {
		return nil
	}
	return dedupe(ips)
}

func (r *Resolver) lookup(ctx context.Context, host string, qtype uint16) []string {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	for _, server := range r.servers {
		reply, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			log.Printf("dns query for %s against %s failed: %v", host, server, err)
			continue
		}
		if reply.Rcode != dns.RcodeSuccess {
			continue
		}
		var ips []string
		for _, rr := range reply.Answer {
			switch record := rr.(type) {
			case *dns.A:
				ips = append(ips, record.A.String())
			case *dns.AAAA:
				ips = append(ips, record.AAAA.String())
			}
		}
		return ips
	}
	return nil
}

func dedupe(ips []string) []string {
	seen := make(map[string]struct{}, len(ips))
	out := ips[:0]
	for _, ip := range ips {
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}
	return out
}
