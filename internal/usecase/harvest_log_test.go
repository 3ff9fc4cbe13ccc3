package usecase

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/user/logquarry/internal/domain"
	"github.com/user/logquarry/internal/domain/mocks"
)

func testHarvester(t *testing.T, transport domain.Transport, reg domain.FileRegistry, opts HarvesterOptions) *Harvester {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.StagingDir == "" {
		opts.StagingDir = t.TempDir()
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	return NewHarvester(transport, reg, nil, nil, logger, opts)
}

func TestHarvester_Harvest(t *testing.T) {
	content := []byte("01/01/2024 10:00:00.000 alpha\n01/01/2024 10:00:01.000 beta\n")

	t.Run("Sequential Copy Success", func(t *testing.T) {
		transport := &mocks.MockTransport{Content: content}
		reg := &mocks.MockRegistry{}
		h := testHarvester(t, transport, reg, HarvesterOptions{ChunkThreshold: 1 << 20})

		result := h.Harvest(context.Background(), domain.HarvestRequest{HostID: "host-a", LogItemID: "svc"})

		if !result.Success {
			t.Fatalf("expected success, got error %q", result.ErrorMessage)
		}
		if result.ErrorMessage != "" {
			t.Errorf("success result must not carry an error message, got %q", result.ErrorMessage)
		}
		got, err := os.ReadFile(result.LocalPath)
		if err != nil {
			t.Fatalf("reading harvested file: %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("harvested content mismatch: got %d bytes, want %d", len(got), len(content))
		}
		if transport.RangeCalls != 0 {
			t.Errorf("small file must not use chunked transfer, got %d range calls", transport.RangeCalls)
		}
		if len(reg.OwnedFiles("host-a")) != 1 {
			t.Errorf("expected 1 registered file, got %d", len(reg.OwnedFiles("host-a")))
		}
	})

	t.Run("Chunked Copy Above Threshold", func(t *testing.T) {
		big := bytes.Repeat([]byte("0123456789abcdef"), 64) // 1 KiB
		transport := &mocks.MockTransport{Content: big}
		reg := &mocks.MockRegistry{}
		h := testHarvester(t, transport, reg, HarvesterOptions{ChunkThreshold: 128, ChunkCount: 4})

		result := h.Harvest(context.Background(), domain.HarvestRequest{HostID: "host-a", LogItemID: "svc"})

		if !result.Success {
			t.Fatalf("expected success, got error %q", result.ErrorMessage)
		}
		if transport.RangeCalls != 4 {
			t.Errorf("expected 4 chunk downloads, got %d", transport.RangeCalls)
		}
		got, err := os.ReadFile(result.LocalPath)
		if err != nil {
			t.Fatalf("reading harvested file: %v", err)
		}
		if !bytes.Equal(got, big) {
			t.Error("chunked harvest reassembled the wrong content")
		}
		info, _ := os.Stat(result.LocalPath)
		if info.Size() != int64(len(big)) {
			t.Errorf("local size %d, want %d", info.Size(), len(big))
		}
	})

	t.Run("Invalid Argument Fails Before Any IO", func(t *testing.T) {
		transport := &mocks.MockTransport{Content: content}
		h := testHarvester(t, transport, &mocks.MockRegistry{}, HarvesterOptions{})

		result := h.Harvest(context.Background(), domain.HarvestRequest{HostID: "", LogItemID: "svc"})

		if result.Success {
			t.Fatal("expected failure")
		}
		if !strings.Contains(result.ErrorMessage, "invalid argument") {
			t.Errorf("unexpected message %q", result.ErrorMessage)
		}
		if transport.ResolveCalls != 0 {
			t.Errorf("expected no network attempt, got %d resolve calls", transport.ResolveCalls)
		}
	})

	t.Run("Unreachable Host Retried Exactly Three Times", func(t *testing.T) {
		transport := &mocks.MockTransport{ResolveErr: domain.ErrUnreachable}
		h := testHarvester(t, transport, &mocks.MockRegistry{}, HarvesterOptions{Retries: 3})

		result := h.Harvest(context.Background(), domain.HarvestRequest{HostID: "host-a", LogItemID: "svc"})

		if result.Success {
			t.Fatal("expected failure")
		}
		if transport.ResolveCalls != 3 {
			t.Errorf("expected exactly 3 attempts, got %d", transport.ResolveCalls)
		}
		if !strings.Contains(result.ErrorMessage, "not reachable") {
			t.Errorf("message must indicate unreachability, got %q", result.ErrorMessage)
		}
	})

	t.Run("No Files Found Message", func(t *testing.T) {
		transport := &mocks.MockTransport{ResolveErr: domain.ErrNoFilesFound}
		h := testHarvester(t, transport, &mocks.MockRegistry{}, HarvesterOptions{})

		result := h.Harvest(context.Background(), domain.HarvestRequest{HostID: "host-a", LogItemID: "svc"})

		if result.Success {
			t.Fatal("expected failure")
		}
		if !strings.Contains(result.ErrorMessage, "no log files") {
			t.Errorf("message must indicate empty directory, got %q", result.ErrorMessage)
		}
	})

	t.Run("Succeeds After Transient Failure", func(t *testing.T) {
		transport := &mocks.MockTransport{
			Content:     content,
			ResolveErrs: []error{domain.ErrUnreachable, nil},
		}
		reg := &mocks.MockRegistry{}
		h := testHarvester(t, transport, reg, HarvesterOptions{})

		result := h.Harvest(context.Background(), domain.HarvestRequest{HostID: "host-a", LogItemID: "svc"})

		if !result.Success {
			t.Fatalf("expected success after retry, got %q", result.ErrorMessage)
		}
		if transport.ResolveCalls != 2 {
			t.Errorf("expected 2 attempts, got %d", transport.ResolveCalls)
		}
	})

	t.Run("Chunk Failure Leaves No Partial File", func(t *testing.T) {
		big := bytes.Repeat([]byte("x"), 1024)
		staging := t.TempDir()
		transport := &mocks.MockTransport{
			Content:   big,
			RangeErrs: map[int64]error{512: domain.ErrTransferFailed},
		}
		reg := &mocks.MockRegistry{}
		h := testHarvester(t, transport, reg, HarvesterOptions{StagingDir: staging, ChunkThreshold: 128, ChunkCount: 4})

		result := h.Harvest(context.Background(), domain.HarvestRequest{HostID: "host-a", LogItemID: "svc"})

		if result.Success {
			t.Fatal("expected failure")
		}
		if !strings.Contains(result.ErrorMessage, "exhausted") {
			t.Errorf("message must indicate exhausted retries, got %q", result.ErrorMessage)
		}
		entries, err := os.ReadDir(staging)
		if err != nil {
			t.Fatalf("reading staging dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected no partial files in staging, found %d", len(entries))
		}
		if len(reg.OwnedFiles("host-a")) != 0 {
			t.Error("failed harvest must not register files for cleanup")
		}
	})
}
