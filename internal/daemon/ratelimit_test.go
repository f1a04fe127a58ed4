package daemon

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestTokenBucketAllow(t *testing.T) {
	bucket := newTokenBucket(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})

	for i := 0; i < 5; i++ {
		if !bucket.allow() {
			t.Errorf("Request %d should be allowed (within burst)", i)
		}
	}
	if bucket.allow() {
		t.Error("Request 6 should be denied (burst exhausted)")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := newTokenBucket(RateLimitConfig{RequestsPerSecond: 100, BurstSize: 1})

	if !bucket.allow() {
		t.Error("First request should be allowed")
	}
	if bucket.allow() {
		t.Error("Second request should be denied")
	}

	time.Sleep(15 * time.Millisecond)

	if !bucket.allow() {
		t.Error("Request after refill should be allowed")
	}
}

func TestRateLimiterUnknownMethodAllowed(t *testing.T) {
	rl := NewRateLimiter(WithMethodLimits(map[string]RateLimitConfig{
		MethodRender: {RequestsPerSecond: 0.001, BurstSize: 1},
	}))

	if !rl.Allow(MethodRender) {
		t.Fatal("first Render should be allowed")
	}
	if rl.Allow(MethodRender) {
		t.Fatal("second Render should be denied")
	}
	for i := 0; i < 10; i++ {
		if !rl.Allow("/other.Service/Method") {
			t.Fatal("methods without a limit should be allowed")
		}
	}

	stats := rl.Stats()
	if len(stats) != 1 || stats[0].DeniedRequests != 1 || stats[0].TotalRequests != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(
		WithEnabled(false),
		WithMethodLimits(map[string]RateLimitConfig{MethodRender: {RequestsPerSecond: 0.001, BurstSize: 1}}),
	)
	for i := 0; i < 5; i++ {
		if !rl.Allow(MethodRender) {
			t.Fatal("disabled limiter should allow everything")
		}
	}

	rl.SetEnabled(true)
	if !rl.IsEnabled() {
		t.Fatal("IsEnabled() = false after SetEnabled(true)")
	}
	rl.Allow(MethodRender)
	if rl.Allow(MethodRender) {
		t.Fatal("re-enabled limiter should deny")
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	rl := NewRateLimiter(WithMethodLimits(map[string]RateLimitConfig{
		MethodRender: {RequestsPerSecond: 0.001, BurstSize: 1},
	}))
	interceptor := rl.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: MethodRender}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	resp, err := interceptor(context.Background(), nil, info, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("first call = (%v, %v), want (ok, nil)", resp, err)
	}

	_, err = interceptor(context.Background(), nil, info, handler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("second call code = %v, want ResourceExhausted", status.Code(err))
	}
}
