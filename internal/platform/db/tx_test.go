package db

import (
	"context"
	"testing"
)

func TestTxFromContextEmpty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Fatalf("expected nil tx from empty context, got %v", tx)
	}
}

func TestTxFromContextWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not a tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Fatalf("expected nil for mistyped value, got %v", tx)
	}
}

func TestConnFromContextEmpty(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Fatalf("expected nil conn from empty context, got %v", conn)
	}
}
