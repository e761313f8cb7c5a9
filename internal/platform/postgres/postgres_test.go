// Copyright (c) 2026 AetherCore contributors.

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestNewPool_InvalidDSNFailsFast(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := NewPool(ctx, "not a dsn at all", logger)
	if err == nil {
		t.Error("NewPool with a malformed DSN should return an error")
	}
}

func TestNewPool_UnreachableHostFailsOnPing(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewPool(ctx, "postgres://user:pw@127.0.0.1:1/nonexistent", logger)
	if err == nil {
		t.Error("NewPool against an unreachable host should return an error")
	}
}
