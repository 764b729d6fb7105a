package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
	"twitchtts/internal/app/infrastructure/config"
	"twitchtts/internal/app/ports"

	"golang.org/x/net/proxy"
)

// NewDialer builds the transport for the configured endpoint: plain TCP,
// optionally through a SOCKS5 proxy, optionally wrapped in TLS.
func NewDialer(cfg config.IRC, proxyCfg *config.Proxy) (ports.Dialer, error) {
	base := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	var d ports.Dialer = base
	if proxyCfg != nil && proxyCfg.Address != "" && proxyCfg.Port != 0 {
		p, err := proxy.SOCKS5("tcp", net.JoinHostPort(proxyCfg.Address, strconv.Itoa(proxyCfg.Port)), nil, base)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy: %w", err)
		}

		cd, ok := p.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("socks5 proxy dialer does not support contexts")
		}
		d = cd
	}

	if cfg.TLS {
		d = &tlsDialer{inner: d}
	}
	return d, nil
}

type tlsDialer struct {
	inner ports.Dialer
}

func (t *tlsDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	raw, err := t.inner.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	conn := tls.Client(raw, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return conn, nil
}
