// Package dialer connects the relay to the run service, optionally through
// an upstream HTTP CONNECT or SOCKS5 proxy.
package dialer

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Dialer handles connections to the run service.
type Dialer struct {
	UpstreamProxy string
	Timeout       time.Duration
}

// New creates a new dialer. An empty upstreamProxy dials directly.
func New(upstreamProxy string) *Dialer {
	return &Dialer{
		UpstreamProxy: upstreamProxy,
		Timeout:       10 * time.Second,
	}
}

// Validate checks the upstream proxy URL without dialing.
func (d *Dialer) Validate() error {
	if d.UpstreamProxy == "" {
		return nil
	}
	_, err := d.proxyURL()
	return err
}

func (d *Dialer) proxyURL() (*url.URL, error) {
	proxyURL, err := url.Parse(d.UpstreamProxy)
	if err != nil {
		return nil, fmt.Errorf("parse upstream proxy: %w", err)
	}
	switch proxyURL.Scheme {
	case "http", "https", "socks5", "socks":
		return proxyURL, nil
	}
	return nil, fmt.Errorf("unsupported upstream proxy scheme: %s", proxyURL.Scheme)
}

// DialContext connects to addr, through the upstream proxy when configured.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if d.UpstreamProxy == "" {
		return d.dial(ctx, network, addr)
	}

	proxyURL, err := d.proxyURL()
	if err != nil {
		return nil, err
	}

	switch proxyURL.Scheme {
	case "http", "https":
		return d.dialHTTPProxy(ctx, proxyURL, addr)
	default:
		return d.dialSOCKS5Proxy(ctx, proxyURL, addr)
	}
}

// Transport returns an http.Transport dialing through d. Responses are not
// decompressed so relayed bodies stay byte-for-byte.
func (d *Dialer) Transport() *http.Transport {
	return &http.Transport{
		DialContext:         d.DialContext,
		ForceAttemptHTTP2:   d.UpstreamProxy == "",
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
	}
}

func (d *Dialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	return nd.DialContext(ctx, network, addr)
}

// withDeadline bounds the proxy handshake by the context and the dial timeout.
func (d *Dialer) withDeadline(ctx context.Context, conn net.Conn) {
	deadline := time.Now().Add(d.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)
}

// dialHTTPProxy connects through an HTTP CONNECT proxy.
func (d *Dialer) dialHTTPProxy(ctx context.Context, proxyURL *url.URL, targetAddr string) (net.Conn, error) {
	proxyAddr := proxyURL.Host
	if proxyURL.Port() == "" {
		proxyAddr = net.JoinHostPort(proxyURL.Hostname(), "8080")
	}

	conn, err := d.dial(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("connect to http proxy: %w", err)
	}
	d.withDeadline(ctx, conn)

	connectReq := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", targetAddr, targetAddr)
	if proxyURL.User != nil {
		username := proxyURL.User.Username()
		password, _ := proxyURL.User.Password()
		auth := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		connectReq += fmt.Sprintf("Proxy-Authorization: Basic %s\r\n", auth)
	}
	connectReq += "\r\n"

	if _, err := conn.Write([]byte(connectReq)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send CONNECT request: %w", err)
	}

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, &http.Request{Method: http.MethodConnect})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read proxy response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy CONNECT failed: %s", resp.Status)
	}

	conn.SetDeadline(time.Time{})
	if reader.Buffered() > 0 {
		return &bufferedConn{Conn: conn, reader: reader}, nil
	}
	return conn, nil
}

// dialSOCKS5Proxy connects through a SOCKS5 proxy.
// DNS resolution is performed by the proxy server, not locally.
func (d *Dialer) dialSOCKS5Proxy(ctx context.Context, proxyURL *url.URL, targetAddr string) (net.Conn, error) {
	proxyAddr := proxyURL.Host
	if proxyURL.Port() == "" {
		proxyAddr = net.JoinHostPort(proxyURL.Hostname(), "1080")
	}

	conn, err := d.dial(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("connect to socks5 proxy: %w", err)
	}
	d.withDeadline(ctx, conn)

	if err := socks5Handshake(conn, proxyURL.User, targetAddr); err != nil {
		conn.Close()
		return nil, err
	}

	conn.SetDeadline(time.Time{})
	return conn, nil
}

func socks5Handshake(conn net.Conn, user *url.Userinfo, targetAddr string) error {
	var authMethod byte = 0x00
	if user != nil {
		authMethod = 0x02
	}

	if _, err := conn.Write([]byte{0x05, 0x01, authMethod}); err != nil {
		return fmt.Errorf("socks5 greeting: %w", err)
	}

	response := make([]byte, 2)
	if _, err := io.ReadFull(conn, response); err != nil {
		return fmt.Errorf("socks5 greeting response: %w", err)
	}
	if response[0] != 0x05 {
		return errors.New("socks5: invalid version")
	}
	if response[1] == 0xFF {
		return errors.New("socks5: no acceptable auth method")
	}

	if response[1] == 0x02 {
		if user == nil {
			return errors.New("socks5: auth required but no credentials")
		}
		username := user.Username()
		password, _ := user.Password()

		authReq := []byte{0x01, byte(len(username))}
		authReq = append(authReq, username...)
		authReq = append(authReq, byte(len(password)))
		authReq = append(authReq, password...)
		if _, err := conn.Write(authReq); err != nil {
			return fmt.Errorf("socks5 auth request: %w", err)
		}

		authResp := make([]byte, 2)
		if _, err := io.ReadFull(conn, authResp); err != nil {
			return fmt.Errorf("socks5 auth response: %w", err)
		}
		if authResp[1] != 0x00 {
			return errors.New("socks5: authentication failed")
		}
	}

	host, portStr, err := net.SplitHostPort(targetAddr)
	if err != nil {
		return fmt.Errorf("parse target address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("parse target port: %w", err)
	}

	connectReq := []byte{0x05, 0x01, 0x00} // VER, CMD (CONNECT), RSV
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			connectReq = append(connectReq, 0x01)
			connectReq = append(connectReq, ip4...)
		} else {
			connectReq = append(connectReq, 0x04)
			connectReq = append(connectReq, ip...)
		}
	} else {
		// Domain name, resolved by the proxy
		connectReq = append(connectReq, 0x03, byte(len(host)))
		connectReq = append(connectReq, host...)
	}
	connectReq = append(connectReq, byte(port>>8), byte(port&0xFF))

	if _, err := conn.Write(connectReq); err != nil {
		return fmt.Errorf("socks5 connect request: %w", err)
	}

	respHeader := make([]byte, 4)
	if _, err := io.ReadFull(conn, respHeader); err != nil {
		return fmt.Errorf("socks5 connect response: %w", err)
	}
	if respHeader[0] != 0x05 {
		return errors.New("socks5: invalid response version")
	}
	if respHeader[1] != 0x00 {
		return fmt.Errorf("socks5: connect failed with code %d", respHeader[1])
	}

	var addrLen int
	switch respHeader[3] {
	case 0x01:
		addrLen = 4
	case 0x03:
		lenByte := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenByte); err != nil {
			return err
		}
		addrLen = int(lenByte[0])
	case 0x04:
		addrLen = 16
	}

	// bound address and port
	remaining := make([]byte, addrLen+2)
	if _, err := io.ReadFull(conn, remaining); err != nil {
		return err
	}
	return nil
}

type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}
