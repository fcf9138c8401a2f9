package mcp

import (
	"context"
	"log/slog"
	"testing"
)

func newTestTransport(cfg ServerConfig) *transport {
	return newTransport(cfg, slog.Default())
}

func TestTransport_Connect_RequiresCommand(t *testing.T) {
	tr := newTestTransport(ServerConfig{ID: "no-command"})
	if err := tr.connect(context.Background()); err == nil {
		t.Fatal("expected an error when Command is empty")
	}
}

func TestTransport_Call_ErrorsWhenNotConnected(t *testing.T) {
	tr := newTestTransport(ServerConfig{ID: "disconnected"})
	_, err := tr.call(context.Background(), "tools/list", nil)
	if err == nil {
		t.Fatal("expected an error calling an unconnected transport")
	}
}

func TestTransport_Notify_ErrorsWhenNotConnected(t *testing.T) {
	tr := newTestTransport(ServerConfig{ID: "disconnected"})
	if err := tr.notify(context.Background(), "notifications/initialized", nil); err == nil {
		t.Fatal("expected an error notifying an unconnected transport")
	}
}

func TestTransport_ProcessLine_RoutesResponseToPendingChannel(t *testing.T) {
	tr := newTestTransport(ServerConfig{ID: "x"})
	respCh := make(chan *rpcResponse, 1)
	tr.pendingMu.Lock()
	tr.pending[7] = respCh
	tr.pendingMu.Unlock()

	tr.processLine(`{"jsonrpc":"2.0","id":7,"result":{"ok":true}}`)

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			t.Fatalf("unexpected error in response: %+v", resp.Error)
		}
		if string(resp.Result) != `{"ok":true}` {
			t.Errorf("result = %s", resp.Result)
		}
	default:
		t.Fatal("expected response to be routed to the pending channel")
	}

	tr.pendingMu.Lock()
	_, stillPending := tr.pending[7]
	tr.pendingMu.Unlock()
	if stillPending {
		t.Error("expected pending entry to be removed once delivered")
	}
}

func TestTransport_ProcessLine_RoutesErrorResponse(t *testing.T) {
	tr := newTestTransport(ServerConfig{ID: "x"})
	respCh := make(chan *rpcResponse, 1)
	tr.pendingMu.Lock()
	tr.pending[1] = respCh
	tr.pendingMu.Unlock()

	tr.processLine(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`)

	resp := <-respCh
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("expected error response, got %+v", resp)
	}
}

func TestTransport_ProcessLine_IgnoresUnknownResponseID(t *testing.T) {
	tr := newTestTransport(ServerConfig{ID: "x"})
	// No pending entry registered for id 99; must not panic.
	tr.processLine(`{"jsonrpc":"2.0","id":99,"result":{}}`)
}

func TestTransport_ProcessLine_RoutesNotificationToEventsChannel(t *testing.T) {
	tr := newTestTransport(ServerConfig{ID: "x"})
	tr.processLine(`{"jsonrpc":"2.0","method":"notifications/progress","params":{"pct":50}}`)

	select {
	case notif := <-tr.events:
		if notif.Method != "notifications/progress" {
			t.Errorf("method = %q", notif.Method)
		}
	default:
		t.Fatal("expected notification to be queued on the events channel")
	}
}

func TestTransport_ProcessLine_MalformedLineIsIgnored(t *testing.T) {
	tr := newTestTransport(ServerConfig{ID: "x"})
	tr.processLine(`not json at all`)
	select {
	case <-tr.events:
		t.Fatal("expected no notification to be queued for malformed input")
	default:
	}
}

func TestTransport_ConnectedNow_ReflectsState(t *testing.T) {
	tr := newTestTransport(ServerConfig{ID: "x"})
	if tr.connectedNow() {
		t.Error("expected a fresh transport to report not connected")
	}
}
