package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNew_RequiresAddress(t *testing.T) {
	if _, err := New(&Config{}, http.NotFoundHandler(), nil); err == nil {
		t.Fatal("expected error for missing http address")
	}
}

func TestServerServeAndShutdown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pond")
	})
	srv, err := New(&Config{HTTPAddress: listener.Addr().String(), ShutdownTimeout: time.Second}, handler, nil)
	if err != nil {
		t.Fatalf("New server failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx, listener)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pond" {
		t.Errorf("body = %q, want pond", body)
	}

	cancel()
	select {
	case err := <-serverDone:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerRun_ListenFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer listener.Close()

	srv, _ := New(&Config{HTTPAddress: listener.Addr().String()}, http.NotFoundHandler(), nil)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected error for address in use")
	}
}
