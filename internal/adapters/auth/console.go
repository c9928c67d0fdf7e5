package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/browser"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

var _ ports.AuthCodeSource = (*ConsoleCodeSource)(nil)

type URLOpener func(url string) error

// ConsoleCodeSource shows the authorize URL and reads the one-time code the
// hosted redirect page displays from the terminal.
type ConsoleCodeSource struct {
	redirectURL string
	in          io.Reader
	out         io.Writer
	open        URLOpener
}

func NewConsoleCodeSource(redirectURL string, in io.Reader, out io.Writer, open URLOpener) *ConsoleCodeSource {
	if open == nil {
		open = browser.OpenURL
	}
	return &ConsoleCodeSource{
		redirectURL: redirectURL,
		in:          in,
		out:         out,
		open:        open,
	}
}

func (c *ConsoleCodeSource) RedirectURL() string {
	return c.redirectURL
}

func (c *ConsoleCodeSource) AwaitCode(ctx context.Context, req domain.AuthorizationRequest) (string, error) {
	presentAuthorizationURL(c.out, c.open, req.URL)
	_, _ = fmt.Fprint(c.out, "Please enter the code here: ")

	lines := make(chan readResult, 1)
	go func() {
		line, err := bufio.NewReader(c.in).ReadString('\n')
		lines <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-lines:
		code := strings.TrimSpace(result.line)
		if code == "" {
			if result.err != nil && !errors.Is(result.err, io.EOF) {
				return "", fmt.Errorf("read authorization code: %w", result.err)
			}
			return "", errors.New("no authorization code entered")
		}
		return code, nil
	}
}

type readResult struct {
	line string
	err  error
}

func presentAuthorizationURL(out io.Writer, open URLOpener, authURL string) {
	_, _ = fmt.Fprintf(out, "Native App Authorization URL:\n%s\n\n", authURL)
	if err := open(authURL); err != nil {
		_, _ = fmt.Fprintf(out, "Please go to this URL and login:\n\n%s\n\n", authURL)
	}
}
