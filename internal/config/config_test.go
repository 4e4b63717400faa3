package config

import "testing"

func TestParsePartners(t *testing.T) {
	partners, err := ParsePartners([]string{
		"WETH:0x4200000000000000000000000000000000000006:18:0x71041dddad3595f9ced3dccfbe3d1f4b0a16bb70",
		"USDC:0x833589fcd6edb6e08f4c7c32d4f71b54bda02913:6:usd",
		"",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(partners) != 2 {
		t.Fatalf("expected 2 partners, got %d", len(partners))
	}
	if partners[0].Symbol != "WETH" || partners[0].Decimals != 18 || partners[0].UsdPegged {
		t.Fatalf("weth mismatch: %+v", partners[0])
	}
	if partners[0].Feed != "0x71041dddad3595f9ced3dccfbe3d1f4b0a16bb70" {
		t.Fatalf("weth feed mismatch: %+v", partners[0])
	}
	if !partners[1].UsdPegged || partners[1].Feed != "" {
		t.Fatalf("usdc mismatch: %+v", partners[1])
	}
}

func TestParsePartnersRejectsIncomplete(t *testing.T) {
	if _, err := ParsePartners([]string{"WETH:0xabc"}); err == nil {
		t.Fatalf("expected error for missing decimals")
	}
	if _, err := ParsePartners([]string{"DAI:0xabc:18"}); err == nil {
		t.Fatalf("expected error for missing feed")
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1700000000")
	if err != nil || ts != 1700000000 {
		t.Fatalf("unix parse: %d %v", ts, err)
	}
	ts, err = ParseTimestamp("2023-11-14T22:13:20Z")
	if err != nil || ts != 1700000000 {
		t.Fatalf("rfc3339 parse: %d %v", ts, err)
	}
	ts, err = ParseTimestamp(" ")
	if err != nil || ts != 0 {
		t.Fatalf("blank parse: %d %v", ts, err)
	}
	if _, err := ParseTimestamp("not-a-time"); err == nil {
		t.Fatalf("expected parse error")
	}
}
