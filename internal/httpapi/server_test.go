package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	logx "routinebot/pkg/logx"
)

func waitForHTTP(ctx context.Context, url string) (int, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return 0, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			return resp.StatusCode, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func TestServerApplyEnableSwapDisable(t *testing.T) {
	s := NewServer(logx.Nop())
	t.Cleanup(func() { s.Stop(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cfg := ServerConfig{Enabled: true, Addr: "127.0.0.1:0"}
	teapot := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	if err := s.Apply(ctx, cfg, teapot); err != nil {
		t.Fatal(err)
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatal("expected listen address")
	}
	if code, err := waitForHTTP(ctx, "http://"+addr+"/"); err != nil || code != http.StatusTeapot {
		t.Fatalf("GET = %d, %v", code, err)
	}

	accepted := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
	if err := s.Apply(ctx, cfg, accepted); err != nil {
		t.Fatal(err)
	}
	if s.Addr() != addr {
		t.Fatalf("handler swap restarted the listener: %s -> %s", addr, s.Addr())
	}
	if code, err := waitForHTTP(ctx, "http://"+addr+"/"); err != nil || code != http.StatusAccepted {
		t.Fatalf("GET after swap = %d, %v", code, err)
	}

	if err := s.Apply(ctx, ServerConfig{Enabled: false}, accepted); err != nil {
		t.Fatal(err)
	}
	if s.Addr() != "" {
		t.Fatal("expected server stopped")
	}
}
