package daemon

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/affandhia/simple-template-string/internal/config"
)

func TestNewUsesConfigAddress(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Daemon.Host = "0.0.0.0"
	cfg.Daemon.Port = 9999

	daemon, err := New(cfg, zerolog.Nop(), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := daemon.bindAddr(); got != "0.0.0.0:9999" {
		t.Fatalf("bindAddr() = %q, want %q", got, "0.0.0.0:9999")
	}

	daemon, err = New(cfg, zerolog.Nop(), Options{Hostname: "127.0.0.1", Port: 1234})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := daemon.bindAddr(); got != "127.0.0.1:1234" {
		t.Fatalf("bindAddr() = %q, want options to win", got)
	}
}

func TestNewDefaultsPort(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Daemon.Host = ""
	cfg.Daemon.Port = 0

	daemon, err := New(cfg, zerolog.Nop(), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want := fmt.Sprintf("127.0.0.1:%d", DefaultPort)
	if got := daemon.bindAddr(); got != want {
		t.Fatalf("bindAddr() = %q, want %q", got, want)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(nil, zerolog.Nop(), Options{}); err == nil {
		t.Fatal("New(nil) should fail")
	}
}

func TestRunReturnsOnCanceledContext(t *testing.T) {
	cfg := config.DefaultConfig()
	daemon, err := New(cfg, zerolog.Nop(), Options{Port: 50099})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- daemon.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestClientRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	daemon, err := New(cfg, zerolog.Nop(), Options{Version: "v-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	listener := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- daemon.Serve(ctx, listener) }()
	defer func() {
		cancel()
		<-done
	}()

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	version, err := client.Ping(callCtx)
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if version != "v-test" {
		t.Errorf("version = %q, want %q", version, "v-test")
	}

	names, err := client.ExtractVariables(callCtx, "{{a}} {{b}}")
	if err != nil {
		t.Fatalf("ExtractVariables() error = %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v, want [a b]", names)
	}

	result, err := client.Render(callCtx, "{{a}}-{{b}}", map[string]string{"a": "x"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if result.Rendered != "x-{{b}}" || result.Fallback {
		t.Errorf("Render() = %+v", result)
	}

	result, err = client.Render(callCtx, "{{oops", nil)
	if err != nil {
		t.Fatalf("Render(invalid) error = %v", err)
	}
	if !result.Fallback || result.Rendered != "{{oops" || result.ParseError == nil {
		t.Errorf("Render(invalid) = %+v", result)
	}
}
