package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jverrill/cortex/internal/notify"
)

// cliChannel is the notify.Channel counterpart to the CLI transport: a
// terminal has no clickable buttons, so SendRich renders each button as a
// typed-reply instruction instead.
type cliChannel struct {
	out io.Writer
}

func newCLIChannel(out io.Writer) *cliChannel {
	return &cliChannel{out: out}
}

func (c *cliChannel) Name() string { return "cli" }

func (c *cliChannel) Capabilities() []notify.Capability {
	return []notify.Capability{notify.CapSend, notify.CapSendRich}
}

func (c *cliChannel) Send(ctx context.Context, userID, text string) bool {
	fmt.Fprintf(c.out, "\n%s\n", text)
	return true
}

func (c *cliChannel) SendRich(ctx context.Context, userID, text string, buttons []notify.Button) bool {
	fmt.Fprintf(c.out, "\n%s\n", text)
	for _, b := range buttons {
		fmt.Fprintf(c.out, "  [%s] reply: %s\n", b.Label, b.Callback)
	}
	return true
}

func (c *cliChannel) SendPhoto(ctx context.Context, userID string, photo []byte, caption string) bool {
	return false
}
