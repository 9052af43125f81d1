package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// CLI is a stdin/stdout transport for local interactive use: each line of
// input is one turn from a single fixed user/conversation pair. It exists
// both as `cortexd run`'s default transport and as a reference
// implementation exercising the Transport contract, since external chat/SMS
// transports are out of scope.
type CLI struct {
	userID string
	in     *bufio.Scanner
	out    io.Writer
}

// NewCLI builds a CLI transport reading lines from in and writing replies to
// out, addressed as userID.
func NewCLI(userID string, in io.Reader, out io.Writer) *CLI {
	return &CLI{userID: userID, in: bufio.NewScanner(in), out: out}
}

func (c *CLI) Name() string { return "cli" }

// Run reads one line at a time until EOF or ctx is cancelled, delivering
// each as an inbound turn and printing the handler's reply. Streamed text
// deltas are not rendered; each turn's final reply is printed on its own
// line.
func (c *CLI) Run(ctx context.Context, handler Handler) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for c.in.Scan() {
			lines <- c.in.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return c.in.Err()
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			c.handleLine(ctx, handler, text)
		}
	}
}

// handleLine ignores streamed deltas and prints only the final reply,
// matching the "transports that cannot render incremental updates may
// ignore it" allowance — a line-buffered terminal has no good way to
// overwrite partial output anyway.
func (c *CLI) handleLine(ctx context.Context, handler Handler, text string) {
	msg := InboundMessage{UserID: c.userID, ConversationID: c.userID, Text: text, Transport: c.Name()}
	reply, err := handler.Handle(ctx, msg, nil)
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	if reply != "" {
		fmt.Fprintf(c.out, "%s\n", reply)
	}
}
