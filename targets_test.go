package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestLookupTargetKnownModules(t *testing.T) {
	for _, name := range []string{"owa", "o365", "ntlm", "smb", "ssh"} {
		if _, err := lookupTarget(name); err != nil {
			t.Errorf("lookupTarget(%q): %v", name, err)
		}
	}
}

func TestLookupTargetUnknownModuleFails(t *testing.T) {
	_, err := lookupTarget("rdp")
	if err == nil {
		t.Fatal("lookupTarget accepted an unknown module")
	}
	if !strings.Contains(err.Error(), "rdp") {
		t.Errorf("error %q does not name the bad module", err)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyNetError(t *testing.T) {
	dialTimeout := &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}
	readTimeout := &net.OpError{Op: "read", Net: "tcp", Err: timeoutErr{}}

	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"dial timeout", dialTimeout, errConnectTimeout},
		{"read timeout", readTimeout, errTransient},
		{"wrapped dial timeout", &url.Error{Op: "Post", URL: "https://x", Err: dialTimeout}, errConnectTimeout},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, errTransient},
		{"connection reset", syscall.ECONNRESET, errTransient},
		{"eof", io.EOF, errTransient},
		{"unknown transport failure", errors.New("tls handshake broke"), errTransient},
	}

	for _, tc := range cases {
		got := classifyNetError(tc.in)
		if tc.want == nil {
			if got != nil {
				t.Errorf("%s: got %v, want nil", tc.name, got)
			}
			continue
		}
		if !errors.Is(got, tc.want) {
			t.Errorf("%s: got %v, want class %v", tc.name, got, tc.want)
		}
	}
}

func TestClassifiedErrorPassesThroughUnchanged(t *testing.T) {
	pre := fmt.Errorf("connecting to 10.0.0.1:443: %w", errConnectTimeout)
	got := classifyNetError(pre)
	if !errors.Is(got, errConnectTimeout) {
		t.Fatalf("got %v, want connect timeout class preserved", got)
	}
	if errors.Is(got, errTransient) {
		t.Errorf("got %v, connect timeout reclassified as transient", got)
	}
}

func TestConnectBoundedDialClassification(t *testing.T) {
	stall := func(ctx context.Context, network, addr string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	dial := connectBoundedDial(stall, 10*time.Millisecond)
	if _, err := dial(context.Background(), "tcp", "10.0.0.1:443"); !errors.Is(err, errConnectTimeout) {
		t.Errorf("stalled dial error = %v, want connect timeout class", err)
	}

	refused := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	}
	dial = connectBoundedDial(refused, 10*time.Millisecond)
	_, err := dial(context.Background(), "tcp", "10.0.0.1:443")
	if errors.Is(err, errConnectTimeout) {
		t.Errorf("refused dial error = %v, tagged as connect timeout", err)
	}
	if !errors.Is(classifyNetError(err), errTransient) {
		t.Errorf("refused dial error = %v, want transient after classification", err)
	}
}

// stallListener accepts connections and never answers; accepted
// connections are held open until cleanup.
func stallListener(t *testing.T, consume bool) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var held []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, conn)
			mu.Unlock()
			if consume {
				go io.Copy(io.Discard, conn)
			}
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		for _, c := range held {
			c.Close()
		}
		mu.Unlock()
	})
	return ln
}

func TestHTTPConnectTimeoutViaStalledProxy(t *testing.T) {
	// The proxy accepts the TCP connection but never answers the SOCKS
	// handshake, so the connect phase never completes.
	ln := stallListener(t, false)

	target, err := newOWATarget("203.0.113.1", 443, 200*time.Millisecond, ln.Addr().String(), "")
	if err != nil {
		t.Fatal(err)
	}

	_, err = target.Login("alice", "Fall2024!")
	if !errors.Is(err, errConnectTimeout) {
		t.Fatalf("error = %v, want connect timeout class", err)
	}
	if errors.Is(err, errTransient) {
		t.Errorf("error = %v, connect timeout also carries the transient class", err)
	}
}

func TestHTTPResponseStallIsTransient(t *testing.T) {
	// The server accepts and reads the request but never sends headers:
	// the connection succeeded, so the failure is transient, not terminal.
	ln := stallListener(t, true)

	target, err := newOWATarget("ignored", 443, 200*time.Millisecond, "", "http://"+ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	_, err = target.Login("alice", "Fall2024!")
	if !errors.Is(err, errTransient) {
		t.Fatalf("error = %v, want transient class", err)
	}
	if errors.Is(err, errConnectTimeout) {
		t.Errorf("error = %v, response stall classified as connect timeout", err)
	}
}

func TestHTTPTargetURL(t *testing.T) {
	base := httpTarget{host: "mail.example.com", port: 443, scheme: "https"}
	if got, want := base.URL("/owa/auth.owa"), "https://mail.example.com:443/owa/auth.owa"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}

	base.SetPlainTransport()
	if got := base.URL("/x"); !strings.HasPrefix(got, "http://") {
		t.Errorf("URL after SetPlainTransport = %q, want http scheme", got)
	}

	base.fireprox = "https://abc123.execute-api.us-east-1.amazonaws.com/fireprox/"
	if got, want := base.URL("/owa/auth.owa"), "https://abc123.execute-api.us-east-1.amazonaws.com/fireprox/owa/auth.owa"; got != want {
		t.Errorf("fireprox URL = %q, want %q", got, want)
	}
}

func TestOWALoginReportsRedirect(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		gotUser = r.PostFormValue("username")
		gotPass = r.PostFormValue("password")
		w.Header().Set("Location", "/owa/auth/logon.aspx?reason=2")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	target, err := newOWATarget("ignored", 443, 5*time.Second, "", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := target.Login("alice@corp.com", "Fall2024!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if gotUser != "alice@corp.com" || gotPass != "Fall2024!" {
		t.Errorf("server saw %q/%q", gotUser, gotPass)
	}
	// The redirect must not be followed, the bounce itself is the signal.
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want 302", resp.StatusCode)
	}
	if !strings.Contains(resp.Message, "reason=2") {
		t.Errorf("message = %q, want the redirect location", resp.Message)
	}
}

func TestO365LoginExtractsFaultText(t *testing.T) {
	const fault = `<S:Envelope xmlns:S="http://www.w3.org/2003/05/soap-envelope" xmlns:psf="http://schemas.microsoft.com/Passport/SoapServices/SOAPFault">
<S:Body><S:Fault><S:Detail><psf:error><psf:internalerror>
<psf:text>AADSTS50126: Error validating credentials due to invalid username or password.</psf:text>
</psf:internalerror></psf:error></S:Detail></S:Fault></S:Body></S:Envelope>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "<wsse:Username>alice@corp.com</wsse:Username>") {
			t.Errorf("request envelope missing username: %s", body)
		}
		io.WriteString(w, fault)
	}))
	defer srv.Close()

	target, err := newO365Target("ignored", 443, 5*time.Second, "", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := target.Login("alice@corp.com", "Fall2024!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !strings.HasPrefix(resp.Message, "AADSTS50126") {
		t.Errorf("message = %q, want the AADSTS fault text", resp.Message)
	}
}

func TestXMLEscape(t *testing.T) {
	if got, want := xmlEscape(`p<45&"x'`), "p&lt;45&amp;&quot;x&apos;"; got != want {
		t.Errorf("xmlEscape = %q, want %q", got, want)
	}
}

func TestNTLMLoginSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	built, err := newNTLMTarget("ignored", 443, 5*time.Second, "", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	target := built.(*ntlmTarget)
	target.SetPath("autodiscover/autodiscover.xml")

	resp, err := target.Login("CORP\\alice", "Fall2024!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if resp.Message != "HTTP 401" {
		t.Errorf("message = %q, want HTTP 401", resp.Message)
	}
}

func TestNTLMSetPathNormalizesLeadingSlash(t *testing.T) {
	target := &ntlmTarget{}
	target.SetPath("ews/exchange.asmx")
	if target.path != "/ews/exchange.asmx" {
		t.Errorf("path = %q, want leading slash added", target.path)
	}
}

func TestSMBTargetRejectsProxy(t *testing.T) {
	if _, err := newSMBTarget("10.0.0.5", 445, 5*time.Second, "127.0.0.1:9050", ""); err == nil {
		t.Fatal("smb target accepted a SOCKS proxy")
	}
}
