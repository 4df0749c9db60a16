package probe

import (
	"context"
	"crypto/tls"
	"log"
	"math"
	"net"
	"net/url"
	"time"

	"sitewatch/internal/models"
)

const sslDialTimeout = 30 * time.Second

// InspectSSL opens a TLS connection to the target of an https URL and
// extracts the leaf certificate details. Any failure returns nil: SSL info
// is best-effort enrichment and never fails a check.
func InspectSSL(ctx context.Context, rawURL string) *models.SSLInfo {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.Hostname() == "" {
		return nil
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: sslDialTimeout},
		// Verification is skipped: certificate details are informational
		// enrichment, and an expired or self-signed cert is exactly the
		// kind of thing worth capturing rather than erroring on.
		Config: &tls.Config{ServerName: u.Hostname(), InsecureSkipVerify: true},
	}
	dialCtx, cancel := context.WithTimeout(ctx, sslDialTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		log.Printf("ssl inspection failed for %s: %v", addr, err)
		return nil
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil
	}
	leaf := certs[0]

	return &models.SSLInfo{
		Issuer:        leaf.Issuer.CommonName,
		Subject:       leaf.Subject.CommonName,
		ValidFrom:     leaf.NotBefore,
		ValidTo:       leaf.NotAfter,
		ExpiresInDays: int(math.Floor(time.Until(leaf.NotAfter).Hours() / 24)),
	}
}
