package transfer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"comicloader/internal/core/types"

	"golang.org/x/time/rate"
)

func TestNewBandwidthLimiter(t *testing.T) {
	if l := NewBandwidthLimiter(0); l.Limit() != rate.Inf {
		t.Errorf("zero rate limit = %v, want Inf", l.Limit())
	}
	if l := NewBandwidthLimiter(types.Bytes(100)); l.Burst() != MinBurst {
		t.Errorf("burst = %d, want MinBurst", l.Burst())
	}
	if l := NewBandwidthLimiter(types.Bytes(1 << 30)); l.Burst() != MaxBurst {
		t.Errorf("burst = %d, want MaxBurst", l.Burst())
	}
}

func TestWriterCountsBytes(t *testing.T) {
	var buf bytes.Buffer
	var total int64
	w := Writer(context.Background(), &buf,
		WithLimiter(NewBandwidthLimiter(0)),
		WithCallback(func(n int64) { total += n }),
	)
	for range 3 {
		if _, err := w.Write([]byte("page")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if buf.String() != "pagepagepage" || total != 12 {
		t.Errorf("wrote %q, counted %d", buf.String(), total)
	}
}

func TestWriterSplitsLargeWrites(t *testing.T) {
	// Writes larger than the burst must still pass.
	limiter := rate.NewLimiter(rate.Limit(1<<20), 16)
	var buf bytes.Buffer
	n, err := Writer(context.Background(), &buf, WithLimiter(limiter)).Write(make([]byte, 100))
	if err != nil || n != 100 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
}

func TestWriterStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if _, err := Writer(ctx, &buf).Write([]byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Write() error = %v, want context.Canceled", err)
	}
	if buf.Len() != 0 {
		t.Error("data written after cancel")
	}
}

func TestWriterAtWaitsForLimiter(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// Burst of 10 bytes spent up front, then 10 bytes per 100ms.
	limiter := rate.NewLimiter(rate.Limit(100), 10)
	var total int64
	w := WriterAt(context.Background(), f, WithLimiter(limiter), WithCallback(func(n int64) { total += n }))

	start := time.Now()
	if _, err := w.WriteAt(make([]byte, 10), 0); err != nil {
		t.Fatalf("WriteAt() error = %v", err)
	}
	if _, err := w.WriteAt(make([]byte, 10), 10); err != nil {
		t.Fatalf("WriteAt() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("second write was not paced, took %s", elapsed)
	}
	if total != 20 {
		t.Errorf("counted %d bytes, want 20", total)
	}
}
