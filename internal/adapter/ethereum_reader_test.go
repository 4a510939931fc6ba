package adapter

import (
	"fmt"
	"testing"

	"github.com/zkrex/zkrex/internal/types"
)

func TestShouldFailover(t *testing.T) {
	r := &EthereumReader{}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "rate limited",
			err:  fmt.Errorf("Rate Limit exceeded"),
			want: true,
		},
		{
			name: "http 429",
			err:  fmt.Errorf("unexpected status 429"),
			want: true,
		},
		{
			name: "timeout",
			err:  fmt.Errorf("i/o timeout"),
			want: true,
		},
		{
			name: "context deadline",
			err:  fmt.Errorf("context deadline exceeded"),
			want: true,
		},
		{
			name: "connection refused",
			err:  fmt.Errorf("dial tcp: connection refused"),
			want: true,
		},
		{
			name: "dns failure",
			err:  fmt.Errorf("lookup rpc.example: no such host"),
			want: true,
		},
		{
			name: "contract revert stays on endpoint",
			err:  fmt.Errorf("execution reverted"),
			want: false,
		},
		{
			name: "generic error stays on endpoint",
			err:  fmt.Errorf("something else went wrong"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.shouldFailover(tt.err); got != tt.want {
				t.Errorf("shouldFailover(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestReaderError(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := NewReaderError(types.NetworkSapphireTestnet, "TokenBalance", inner, map[string]interface{}{"to": "0x1"})

	if err.Unwrap() != inner {
		t.Error("Unwrap() must return the inner error")
	}
	msg := err.Error()
	if msg == "" || err.Op != "TokenBalance" {
		t.Errorf("unexpected error shape: %q", msg)
	}
}
