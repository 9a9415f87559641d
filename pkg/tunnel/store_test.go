package tunnel

import (
	"context"
	"testing"
)

func TestMemIngressStoreUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemIngressStore()

	rule := &IngressRule{TunnelID: "tun-1", Hostname: "app.example.com", Service: "http://localhost:8080"}

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Upsert(ctx, tx, rule); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, ok, err := s.GetByKey(ctx, rule.Key())
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if !ok {
		t.Fatal("expected rule to exist after commit")
	}
	if got.Service != "http://localhost:8080" {
		t.Fatalf("got service %q, want http://localhost:8080", got.Service)
	}
}

func TestMemIngressStoreRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemIngressStore()

	rule := &IngressRule{TunnelID: "tun-1", Hostname: "app.example.com"}

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Upsert(ctx, tx, rule); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if _, ok, err := s.GetByKey(ctx, rule.Key()); err != nil || ok {
		t.Fatalf("GetByKey after rollback: ok=%v err=%v, want ok=false", ok, err)
	}
}

func TestMemIngressStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemIngressStore()
	rule := &IngressRule{TunnelID: "tun-1", Hostname: "app.example.com"}

	tx, _ := s.Begin(ctx)
	_ = s.Upsert(ctx, tx, rule)
	_ = tx.Commit(ctx)

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Delete(ctx, tx, rule.Key()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, ok, err := s.GetByKey(ctx, rule.Key()); err != nil || ok {
		t.Fatalf("GetByKey after delete: ok=%v err=%v, want ok=false", ok, err)
	}
}

func TestMemIngressStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemIngressStore()

	tx, _ := s.Begin(ctx)
	_ = s.Upsert(ctx, tx, &IngressRule{TunnelID: "tun-1", Hostname: "a.example.com"})
	_ = s.Upsert(ctx, tx, &IngressRule{TunnelID: "tun-1", Hostname: "b.example.com"})
	_ = s.Upsert(ctx, tx, &IngressRule{TunnelID: "tun-2", Hostname: "c.example.com"})
	_ = tx.Commit(ctx)

	got, err := s.List(ctx, "tun-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List(tun-1) returned %d rules, want 2", len(got))
	}
}

func TestMemIngressStoreNestedTransactionRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemIngressStore()

	if _, err := s.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := s.Begin(ctx); err != ErrNestedTransaction {
		t.Fatalf("second Begin error = %v, want ErrNestedTransaction", err)
	}
}

func TestMemIngressStoreDoubleCommitRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemIngressStore()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Commit(ctx); err != ErrTxAlreadyClosed {
		t.Fatalf("second Commit error = %v, want ErrTxAlreadyClosed", err)
	}
}
