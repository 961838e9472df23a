package scraper

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/crypto/ssh"
)

// authMethods builds the SSH auth method list from whichever of
// password/private key the worker was configured with. Both may be
// present; the SSH handshake tries each in order.
func (w *Worker) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if len(w.cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(w.cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}

		methods = append(methods, ssh.PublicKeys(signer))
	}

	if w.cfg.Password != "" {
		methods = append(methods, ssh.Password(w.cfg.Password))
	}

	return methods, nil
}

// DialSSH is the production Dialer: a plain golang.org/x/crypto/ssh
// TCP dial honoring ctx's deadline via net.Dialer.
func DialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: cfg.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}
