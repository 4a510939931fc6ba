package types

import (
	"math/big"
	"testing"
	"time"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals uint8
		want     string
	}{
		{
			name:     "nil amount",
			raw:      "",
			decimals: 18,
			want:     "0",
		},
		{
			name:     "zero amount",
			raw:      "0",
			decimals: 18,
			want:     "0",
		},
		{
			name:     "whole token",
			raw:      "1000000000000000000",
			decimals: 18,
			want:     "1",
		},
		{
			name:     "fractional amount trims trailing zeros",
			raw:      "1500000000000000000",
			decimals: 18,
			want:     "1.5",
		},
		{
			name:     "amount smaller than one unit",
			raw:      "1",
			decimals: 18,
			want:     "0.000000000000000001",
		},
		{
			name:     "six decimal stablecoin",
			raw:      "12345678",
			decimals: 6,
			want:     "12.345678",
		},
		{
			name:     "zero decimals",
			raw:      "42",
			decimals: 0,
			want:     "42",
		},
		{
			name:     "negative amount",
			raw:      "-2500000",
			decimals: 6,
			want:     "-2.5",
		},
		{
			name:     "large balance",
			raw:      "123456789000000000000000000",
			decimals: 18,
			want:     "123456789",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw *big.Int
			if tt.raw != "" {
				var ok bool
				raw, ok = new(big.Int).SetString(tt.raw, 10)
				if !ok {
					t.Fatalf("invalid test amount %q", tt.raw)
				}
			}

			if got := FormatUnits(raw, tt.decimals); got != tt.want {
				t.Errorf("FormatUnits(%s, %d) = %q, want %q", tt.raw, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestBalanceItemIsPositive(t *testing.T) {
	tests := []struct {
		name string
		item BalanceItem
		want bool
	}{
		{
			name: "nil raw amount",
			item: BalanceItem{DisplayAmount: "1"},
			want: false,
		},
		{
			name: "zero raw amount",
			item: BalanceItem{RawAmount: big.NewInt(0), DisplayAmount: "0"},
			want: false,
		},
		{
			name: "positive amount",
			item: BalanceItem{RawAmount: big.NewInt(1500), DisplayAmount: "1.5"},
			want: true,
		},
		{
			name: "negative amount",
			item: BalanceItem{RawAmount: big.NewInt(-1), DisplayAmount: "-0.000001"},
			want: false,
		},
		{
			name: "dust that formats below display precision",
			item: BalanceItem{RawAmount: big.NewInt(1), DisplayAmount: "0"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.IsPositive(); got != tt.want {
				t.Errorf("IsPositive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{
			name:    "valid lowercase address",
			address: "0x1234567890abcdef1234567890abcdef12345678",
			want:    true,
		},
		{
			name:    "valid mixed case address",
			address: "0x1234567890ABCDEF1234567890abcdef12345678",
			want:    true,
		},
		{
			name:    "missing prefix",
			address: "1234567890abcdef1234567890abcdef12345678",
			want:    false,
		},
		{
			name:    "too short",
			address: "0x1234",
			want:    false,
		},
		{
			name:    "too long",
			address: "0x1234567890abcdef1234567890abcdef123456789",
			want:    false,
		},
		{
			name:    "non-hex characters",
			address: "0x1234567890abcdef1234567890abcdef1234567g",
			want:    false,
		},
		{
			name:    "empty string",
			address: "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidAddress(tt.address); got != tt.want {
				t.Errorf("ValidAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := NormalizeAddress("  0xABCdef1234567890ABCDEF1234567890abcdef12 ")
	want := "0xabcdef1234567890abcdef1234567890abcdef12"
	if got != want {
		t.Errorf("NormalizeAddress() = %q, want %q", got, want)
	}
}

func TestTokenDescriptorIsNative(t *testing.T) {
	native := TokenDescriptor{Name: "ROSE (Testnet)", Symbol: "ROSEt", Decimals: NativeDecimals}
	if !native.IsNative() {
		t.Error("descriptor without address should be native")
	}

	erc20 := TokenDescriptor{Address: "0x1234567890abcdef1234567890abcdef12345678"}
	if erc20.IsNative() {
		t.Error("descriptor with address should not be native")
	}
}

func TestDateString(t *testing.T) {
	d := time.Date(2026, time.March, 7, 23, 59, 0, 0, time.UTC)
	if got := DateString(d); got != "2026-03-07" {
		t.Errorf("DateString() = %q, want %q", got, "2026-03-07")
	}
}
