package grpcengine

import (
	"context"
	"testing"

	"github.com/grpcwire/engine/grpcserver"
)

func markerInterceptor(name string, trail *[]string) Interceptor {
	return func(next grpcserver.Handler) grpcserver.Handler {
		return func(ctx context.Context, ch *grpcserver.Chan) {
			*trail = append(*trail, name)
			next(ctx, ch)
		}
	}
}

func TestChainAppliesOutermostFirst(t *testing.T) {
	var trail []string
	final := func(ctx context.Context, ch *grpcserver.Chan) {
		trail = append(trail, "final")
	}

	chained := Chain(
		markerInterceptor("first", &trail),
		markerInterceptor("second", &trail),
	)(final)

	chained(context.Background(), nil)

	want := []string{"first", "second", "final"}
	if len(trail) != len(want) {
		t.Fatalf("trail = %v, want %v", trail, want)
	}
	for i, w := range want {
		if trail[i] != w {
			t.Fatalf("trail = %v, want %v", trail, want)
		}
	}
}

func TestChainWithNoInterceptorsIsIdentity(t *testing.T) {
	called := false
	final := func(ctx context.Context, ch *grpcserver.Chan) { called = true }

	Chain()(final)(context.Background(), nil)

	if !called {
		t.Fatal("expected final handler to run unmodified")
	}
}
