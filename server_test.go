package orbyte

import (
	"context"
	"testing"
	"time"

	"orbyte.systems/orbyte/schema"
)

func TestServerStopStopsEngine(t *testing.T) {
	server := &compositeServer{
		started: true,
	}
	ctx, cancel := context.WithCancel(context.Background())
	server.ctx = ctx
	server.cancel = cancel

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected server context to be canceled")
	}
}

func TestNewBuildsFilesystemBridge(t *testing.T) {
	dir := t.TempDir()
	server, err := New(ServerConfig{
		Service: schema.ServiceConfig{
			ScriptsRoot: dir + "/scripts",
			StateDir:    dir + "/state",
		},
	}, ServerDeps{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if server == nil {
		t.Fatalf("expected server")
	}
	ch, unsub := server.Subscribe()
	defer unsub()
	if ch == nil {
		t.Fatalf("expected event subscription")
	}
}

func TestWaitRequiresStart(t *testing.T) {
	server := &compositeServer{}
	if err := server.Wait(); err == nil {
		t.Fatalf("expected error when not started")
	}
}

func TestExecRelayDropsUnboundEvents(t *testing.T) {
	relay := &execRelay{}
	relay.notify(schema.ExecEvent{Type: schema.ExecStarted, Filename: "a.js"})
}
