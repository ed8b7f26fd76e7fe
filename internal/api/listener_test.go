package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestListenerServesAndShutsDown(t *testing.T) {
	l := NewListener("127.0.0.1:0", time.Second)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	if err := l.Start(h); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + l.Addr() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err, ok := <-l.Errors(); ok && err != nil {
		t.Errorf("unexpected serve error: %v", err)
	}
}
