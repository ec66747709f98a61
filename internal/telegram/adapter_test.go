package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageShort(t *testing.T) {
	parts := splitMessage("hello")
	if len(parts) != 1 || parts[0] != "hello" {
		t.Errorf("parts = %v", parts)
	}
}

func TestSplitMessageLong(t *testing.T) {
	text := strings.Repeat("a", maxTelegramMessage*2+100)
	parts := splitMessage(text)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	total := 0
	for _, p := range parts {
		if len(p) > maxTelegramMessage {
			t.Errorf("part exceeds limit: %d", len(p))
		}
		total += len(p)
	}
	if total != len(text) {
		t.Errorf("lost content: %d != %d", total, len(text))
	}
}

func TestThreadRoundTrip(t *testing.T) {
	thread := buildThread(42, -1001)
	if thread != "telegram:42:-1001" {
		t.Errorf("thread = %s", thread)
	}
	user, chat, err := parseThread(thread)
	if err != nil {
		t.Fatal(err)
	}
	if user != 42 || chat != -1001 {
		t.Errorf("parsed %d, %d", user, chat)
	}
}

func TestParseThreadRejectsForeign(t *testing.T) {
	if _, _, err := parseThread("sms:+1555"); err == nil {
		t.Error("expected error for non-telegram thread")
	}
	if _, _, err := parseThread("telegram:notanumber:1"); err == nil {
		t.Error("expected error for malformed ids")
	}
}
