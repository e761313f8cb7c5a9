// Copyright (c) 2026 AetherCore contributors.

package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestNewClient_InvalidURLFailsFast(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := NewClient(ctx, "://not-a-url", logger)
	if err == nil {
		t.Error("NewClient with a malformed URL should return an error")
	}
}

func TestNewClient_UnreachableHostFailsOnPing(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewClient(ctx, "redis://127.0.0.1:1/0", logger)
	if err == nil {
		t.Error("NewClient against an unreachable host should return an error")
	}
}
