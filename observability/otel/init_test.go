package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret ,broken,=empty, tenant=nft ")
	if len(headers) != 2 || headers["api-key"] != "secret" || headers["tenant"] != "nft" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestInitDisabledSignals(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected service name to be required")
	}
	shutdown, err := Init(context.Background(), Config{ServiceName: "nftstaked"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
