package oracle

import (
	"context"
	"math/big"
	"testing"
)

func TestParseRoundAnswer(t *testing.T) {
	values := []interface{}{
		big.NewInt(100),
		big.NewInt(200000000000),
		big.NewInt(1700000000),
		big.NewInt(1700000000),
		big.NewInt(100),
	}
	answer, err := parseRoundAnswer(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if answer.String() != "200000000000" {
		t.Fatalf("answer mismatch: %s", answer)
	}
}

func TestParseRoundAnswerRejectsNonPositive(t *testing.T) {
	values := []interface{}{
		big.NewInt(100),
		big.NewInt(0),
		big.NewInt(1700000000),
		big.NewInt(1700000000),
		big.NewInt(100),
	}
	if _, err := parseRoundAnswer(values); err == nil {
		t.Fatalf("expected error for zero answer")
	}

	values[1] = big.NewInt(-5)
	if _, err := parseRoundAnswer(values); err == nil {
		t.Fatalf("expected error for negative answer")
	}
}

func TestParseRoundAnswerShape(t *testing.T) {
	if _, err := parseRoundAnswer([]interface{}{big.NewInt(1)}); err == nil {
		t.Fatalf("expected error for short tuple")
	}
}

func TestFixedFeed(t *testing.T) {
	feed := NewFixedFeed(big.NewInt(100000000), 8)
	if feed.Decimals() != 8 {
		t.Fatalf("decimals mismatch: %d", feed.Decimals())
	}
	price, err := feed.FetchPrice(context.Background(), 1700000000)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if price.String() != "100000000" {
		t.Fatalf("price mismatch: %s", price)
	}

	// callers must not be able to mutate the feed's constant
	price.SetInt64(1)
	again, err := feed.FetchPrice(context.Background(), 1700000000)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if again.String() != "100000000" {
		t.Fatalf("feed constant mutated: %s", again)
	}
}
