package statedb

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// sshServer accepts password logins for admin and serves direct-tcpip
// channels, which is all a port forward needs.
func sshServer(t *testing.T, password string) (addr string, hostKey ssh.PublicKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "admin" && string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSH(nc, cfg)
		}
	}()
	return ln.Addr().String(), signer.PublicKey()
}

func serveSSH(nc net.Conn, cfg *ssh.ServerConfig) {
	conn, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "direct-tcpip" {
			nch.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		var req struct {
			Host     string
			Port     uint32
			OrigHost string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nch.ExtraData(), &req); err != nil {
			nch.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		target, err := net.Dial("tcp", net.JoinHostPort(req.Host, strconv.Itoa(int(req.Port))))
		if err != nil {
			nch.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, chReqs, err := nch.Accept()
		if err != nil {
			target.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go func() {
			io.Copy(ch, target)
			ch.Close()
		}()
		go func() {
			io.Copy(target, ch)
			target.Close()
		}()
	}
}

func echoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestSSHTunnel_Forwards(t *testing.T) {
	host, _ := sshServer(t, "secret")
	remote := echoServer(t)

	tun, err := NewSSHTunnel(TunnelConfig{Host: host, User: "admin", Password: "secret", Remote: remote})
	if err != nil {
		t.Fatal(err)
	}
	defer tun.Close()

	c, err := net.Dial("tcp", tun.LocalAddr())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := io.WriteString(c, "PING\n"); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "PING\n" {
		t.Errorf("read %q through tunnel, want %q", line, "PING\n")
	}
	if n := tun.Forwarded(); n != 1 {
		t.Errorf("Forwarded() = %d, want 1", n)
	}
}

func TestSSHTunnel_Errors(t *testing.T) {
	host, _ := sshServer(t, "secret")

	// A known_hosts entry for the right address but another key.
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	otherKey, err := ssh.NewPublicKey(otherPub)
	if err != nil {
		t.Fatal(err)
	}
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(knownHosts, []byte(knownhosts.Line([]string{host}, otherKey)+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  TunnelConfig
	}{
		{"wrong password", TunnelConfig{Host: host, User: "admin", Password: "nope"}},
		{"no credentials", TunnelConfig{Host: host, User: "admin"}},
		{"missing key file", TunnelConfig{Host: host, User: "admin", KeyFile: "/nonexistent/id_ed25519"}},
		{"host key mismatch", TunnelConfig{Host: host, User: "admin", Password: "secret", KnownHosts: knownHosts}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tun, err := NewSSHTunnel(tt.cfg)
			if err == nil {
				tun.Close()
				t.Fatal("expected error")
			}
		})
	}
}

func TestSSHTunnel_KnownHostAccepted(t *testing.T) {
	host, key := sshServer(t, "secret")
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(knownHosts, []byte(knownhosts.Line([]string{host}, key)+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	tun, err := NewSSHTunnel(TunnelConfig{Host: host, User: "admin", Password: "secret", KnownHosts: knownHosts})
	if err != nil {
		t.Fatal(err)
	}
	if err := tun.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
