package scraper_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// testSSHServer is a minimal in-process SSH server: it accepts any
// password, answers every "exec" request on a session by writing a
// fixed set of lines to the channel, and keeps the channel open until
// the test's context is cancelled or the client closes it. It is the
// grounding for the scraper package's Connecting -> Tailing tests,
// standing in for a real sshd without a container dependency.
type testSSHServer struct {
	listener net.Listener
	config   *ssh.ServerConfig

	mu    sync.Mutex
	lines []string // lines served to the next connecting session
}

func newTestSSHServer() (*testSSHServer, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, _ []byte) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	return &testSSHServer{listener: ln, config: cfg}, nil
}

func (s *testSSHServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *testSSHServer) setLines(lines []string) {
	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
}

// serveOnce accepts exactly one connection, serves the configured
// lines over each of its session channels, and returns once that
// connection closes.
func (s *testSSHServer) serveOnce(ctx context.Context) error {
	conn, err := s.listener.Accept()
	if err != nil {
		return err
	}

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		_ = conn.Close()

		return err
	}

	defer func() { _ = sshConn.Close() }()

	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unsupported channel type")

			continue
		}

		ch, chReqs, err := newChan.Accept()
		if err != nil {
			return err
		}

		go s.handleSession(ctx, ch, chReqs)
	}

	return nil
}

func (s *testSSHServer) handleSession(ctx context.Context, ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer func() { _ = ch.Close() }()

	closed := make(chan struct{})

	go func() {
		defer close(closed)

		for req := range reqs {
			if req.WantReply {
				_ = req.Reply(req.Type == "exec", nil)
			}

			if req.Type == "exec" {
				s.mu.Lock()
				lines := append([]string(nil), s.lines...)
				s.mu.Unlock()

				for _, line := range lines {
					if _, err := ch.Write([]byte(line + "\n")); err != nil {
						return
					}
				}
			}
		}
	}()

	// Behave like "tail -F": stay open (as if following the file) until
	// the test's context is cancelled or the client closes the channel,
	// rather than closing the instant the canned lines are drained.
	select {
	case <-ctx.Done():
	case <-closed:
	}
}

func clientConfigInsecure(user, password string) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
	}
}

func isConnRefusedOrClosed(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "closed") || strings.Contains(err.Error(), "refused"))
}
