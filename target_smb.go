package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/hirochachacha/go-smb2"
)

// smbTarget sprays SMB authentication. It is connection-oriented: the
// scheduler probes the service once before the main loop and aborts the
// run if the host cannot be reached.
type smbTarget struct {
	host     string
	port     int
	timeout  time.Duration
	hostname string
}

func newSMBTarget(host string, port int, timeout time.Duration, proxyAddr, fireprox string) (Target, error) {
	if proxyAddr != "" {
		return nil, fmt.Errorf("smb module does not support a proxy")
	}
	return &smbTarget{host: host, port: port, timeout: timeout}, nil
}

func (t *smbTarget) Name() string        { return "smb" }
func (t *smbTarget) Description() string { return "SMB authentication" }

func (t *smbTarget) addr() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// Dialect reports the negotiated protocol family. go-smb2 only speaks
// SMB2 and above, so a service that completes the probe negotiation
// always lands here.
func (t *smbTarget) Dialect() string { return "SMBv2/3" }

// Hostname reports the remote machine name learned during the probe.
func (t *smbTarget) Hostname() string { return t.hostname }

// Domain and OS stay empty: go-smb2 keeps the NTLM challenge internal,
// so the target's domain and OS version never reach the caller.
func (t *smbTarget) Domain() string { return "" }
func (t *smbTarget) OS() string     { return "" }

// EstablishConnection negotiates SMB with the service before the spray
// starts. The anonymous session setup is expected to be refused; the
// negotiation completing at all proves an SMB2+ service is answering,
// which a bare TCP accept would not.
func (t *smbTarget) EstablishConnection() error {
	conn, err := net.DialTimeout("tcp", t.addr(), t.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(t.timeout))

	dialer := &smb2.Dialer{Initiator: &smb2.NTLMInitiator{User: ""}}
	session, err := dialer.Dial(conn)
	if err == nil {
		_ = session.Logoff()
	} else if !isLogonFailure(err) {
		return err
	}

	if names, err := net.LookupAddr(t.host); err == nil && len(names) > 0 {
		t.hostname = strings.TrimSuffix(names[0], ".")
	} else {
		t.hostname = t.host
	}
	return nil
}

func (t *smbTarget) PrintHeaderBanner() {
	color.New(color.Bold).Printf("%-28s %-28s %s\n", "Username", "Password", "Result")
}

func (t *smbTarget) Login(username, password string) (*Response, error) {
	conn, err := net.DialTimeout("tcp", t.addr(), t.timeout)
	if err != nil {
		return nil, classifyNetError(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(t.timeout))

	domain := ""
	if i := strings.Index(username, `\`); i >= 0 {
		domain, username = username[:i], username[i+1:]
	}

	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     username,
			Password: password,
			Domain:   domain,
		},
	}

	session, err := dialer.Dial(conn)
	if err == nil {
		_ = session.Logoff()
		return &Response{Success: true, Message: "LOGIN SUCCESS"}, nil
	}

	if isLogonFailure(err) {
		return &Response{Message: "LOGON FAILURE"}, nil
	}
	return nil, classifyNetError(err)
}

// isLogonFailure separates bad credentials from transport problems in
// go-smb2's error strings.
func isLogonFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "logon failure") ||
		strings.Contains(msg, "wrong password") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "status_logon_failure") ||
		strings.Contains(msg, "account") // locked / disabled / restriction
}
