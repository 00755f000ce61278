package statedb

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/newtron-network/oftopo/pkg/util"
)

// DefaultRemoteAddr is where Redis listens as seen from the SSH host.
const DefaultRemoteAddr = "127.0.0.1:6379"

// TunnelConfig describes an SSH hop to a Redis server that is only
// reachable from the controller host.
type TunnelConfig struct {
	Host     string // host or host:port; port 22 if absent
	User     string
	Password string
	KeyFile  string // private key, tried before the password
	// KnownHosts is a known_hosts file. Empty skips host key checks.
	KnownHosts string
	// Remote is the Redis address on the far side (DefaultRemoteAddr if empty).
	Remote string
}

// SSHTunnel forwards a local TCP port to Redis on a remote host through an
// SSH connection.
type SSHTunnel struct {
	localAddr string
	remote    string
	sshClient *ssh.Client
	listener  net.Listener
	done      chan struct{}
	wg        sync.WaitGroup
	forwarded atomic.Int64
}

// NewSSHTunnel dials SSH per cfg and opens a local listener on a random
// port.
func NewSSHTunnel(cfg TunnelConfig) (*SSHTunnel, error) {
	config, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}

	host := cfg.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "22")
	}
	sshClient, err := ssh.Dial("tcp", host, config)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", host, err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("local listen: %w", err)
	}

	remote := cfg.Remote
	if remote == "" {
		remote = DefaultRemoteAddr
	}
	t := &SSHTunnel{
		localAddr: listener.Addr().String(),
		remote:    remote,
		sshClient: sshClient,
		listener:  listener,
		done:      make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()

	util.WithComponent("statedb").Debugf("SSH tunnel %s -> %s via %s", t.localAddr, remote, host)
	return t, nil
}

func (cfg TunnelConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading SSH key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parsing SSH key %s: %w", cfg.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("SSH tunnel needs a password or a key file")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
	}, nil
}

// LocalAddr returns the local address that forwards to the remote Redis.
func (t *SSHTunnel) LocalAddr() string {
	return t.localAddr
}

// Forwarded returns how many connections the tunnel has carried.
func (t *SSHTunnel) Forwarded() int64 {
	return t.forwarded.Load()
}

// Close stops the listener, closes the SSH connection, and waits for
// all forwarding goroutines to finish.
func (t *SSHTunnel) Close() error {
	close(t.done)
	t.listener.Close()
	err := t.sshClient.Close()
	t.wg.Wait()
	return err
}

func (t *SSHTunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				continue
			}
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *SSHTunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.sshClient.Dial("tcp", t.remote)
	if err != nil {
		util.WithComponent("statedb").Warnf("SSH tunnel: dialing %s: %v", t.remote, err)
		return
	}
	defer remote.Close()
	t.forwarded.Add(1)

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote)
		done <- struct{}{}
	}()
	select {
	case <-done:
	case <-t.done:
	}
}
