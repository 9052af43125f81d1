package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jverrill/cortex/internal/notify"
)

func TestCLIChannelSendWritesText(t *testing.T) {
	var buf bytes.Buffer
	ch := newCLIChannel(&buf)

	if !ch.Send(context.Background(), "owner", "hello") {
		t.Fatalf("expected Send to report success")
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected text in output, got %q", buf.String())
	}
}

func TestCLIChannelSendRichRendersButtonsAsInstructions(t *testing.T) {
	var buf bytes.Buffer
	ch := newCLIChannel(&buf)

	buttons := []notify.Button{{Label: "Run Now", Callback: "mst:deadbeef:run"}}
	if !ch.SendRich(context.Background(), "owner", "task missed", buttons) {
		t.Fatalf("expected SendRich to report success")
	}
	out := buf.String()
	if !strings.Contains(out, "task missed") || !strings.Contains(out, "mst:deadbeef:run") {
		t.Fatalf("expected prompt and callback instructions in output, got %q", out)
	}
}

func TestCLIChannelSendPhotoUnsupported(t *testing.T) {
	var buf bytes.Buffer
	ch := newCLIChannel(&buf)
	if ch.SendPhoto(context.Background(), "owner", []byte("x"), "caption") {
		t.Fatalf("expected send_photo to report unsupported")
	}
}

func TestCLIChannelCapabilitiesExcludePhoto(t *testing.T) {
	ch := newCLIChannel(&bytes.Buffer{})
	caps := ch.Capabilities()
	for _, c := range caps {
		if c == notify.CapSendPhoto {
			t.Fatalf("expected SendPhoto capability to be absent")
		}
	}
}
