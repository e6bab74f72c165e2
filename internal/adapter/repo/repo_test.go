package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"camclip/internal/domain"
	"camclip/internal/sqlinline"
)

const (
	testOrderID    = "5b1d3c52-8f0e-4a51-9a6e-2f7c1d9e4b10"
	testAnalysisID = "0e6f4b8a-3c2d-4e1f-8a9b-7c6d5e4f3a21"
	testPromptID   = "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type execCall struct {
	query string
	args  []any
}

// stubSQL answers each query constant with the configured handler.
type stubSQL struct {
	exec     map[string]func(args ...any) (pgconn.CommandTag, error)
	queryRow map[string]func(args ...any) pgx.Row
	calls    []execCall
}

func newStubSQL() *stubSQL {
	return &stubSQL{
		exec:     map[string]func(args ...any) (pgconn.CommandTag, error){},
		queryRow: map[string]func(args ...any) pgx.Row{},
	}
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, execCall{query: query, args: args})
	if fn, ok := s.exec[query]; ok {
		return fn(args...)
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec")
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, execCall{query: query, args: args})
	if fn, ok := s.queryRow[query]; ok {
		return fn(args...)
	}
	return simpleRow{}
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query")
}

func rowsAffected(n int) func(args ...any) (pgconn.CommandTag, error) {
	return func(args ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", n)), nil
	}
}

func stateRow(status string, retries int) func(args ...any) pgx.Row {
	return func(args ...any) pgx.Row {
		return simpleRow{scan: func(dest ...any) error {
			*dest[0].(*string) = status
			*dest[1].(*int) = retries
			return nil
		}}
	}
}

func TestMarkProcessingRejectsCompletedOrder(t *testing.T) {
	sql := newStubSQL()
	sql.exec[sqlinline.QMarkOrderProcessing] = rowsAffected(0)
	sql.queryRow[sqlinline.QSelectOrderProcessingState] = stateRow("completed", 0)

	err := NewOrderRepository(sql).MarkProcessing(context.Background(), testOrderID)
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestMarkProcessingMissingOrder(t *testing.T) {
	sql := newStubSQL()
	sql.exec[sqlinline.QMarkOrderProcessing] = rowsAffected(0)

	err := NewOrderRepository(sql).MarkProcessing(context.Background(), "7f3e2d1c-0b9a-4876-a5b4-c3d2e1f0a9b8")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteRequiresVideoURL(t *testing.T) {
	sql := newStubSQL()
	err := NewOrderRepository(sql).Complete(context.Background(), testOrderID, domain.VideoResult{})
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if len(sql.calls) != 0 {
		t.Fatalf("expected no sql calls, got %d", len(sql.calls))
	}
}

func TestResetForRetryReturnsNewCount(t *testing.T) {
	sql := newStubSQL()
	sql.queryRow[sqlinline.QResetOrderForRetry] = func(args ...any) pgx.Row {
		if args[1] != domain.MaxRetries {
			t.Fatalf("max retries arg = %v", args[1])
		}
		return simpleRow{scan: func(dest ...any) error {
			*dest[0].(*int) = 1
			return nil
		}}
	}

	count, err := NewOrderRepository(sql).ResetForRetry(context.Background(), testOrderID, domain.MaxRetries)
	if err != nil {
		t.Fatalf("ResetForRetry returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestResetForRetryDistinguishesRejections(t *testing.T) {
	cases := []struct {
		name    string
		status  string
		retries int
		want    error
	}{
		{name: "cap reached", status: "failed", retries: 3, want: domain.ErrMaxRetriesExceeded},
		{name: "not failed", status: "processing", retries: 0, want: domain.ErrRetryNotAllowed},
		{name: "completed", status: "completed", retries: 1, want: domain.ErrRetryNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql := newStubSQL()
			sql.queryRow[sqlinline.QSelectOrderProcessingState] = stateRow(tc.status, tc.retries)

			count, err := NewOrderRepository(sql).ResetForRetry(context.Background(), testOrderID, domain.MaxRetries)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if count != tc.retries {
				t.Fatalf("count = %d, want %d", count, tc.retries)
			}
		})
	}
}

func TestSelectPromptUnknownPrompt(t *testing.T) {
	sql := newStubSQL()
	sql.exec[sqlinline.QSelectPromptExclusive] = rowsAffected(0)

	err := NewAnalysisRepository(sql).SelectPrompt(context.Background(), testAnalysisID, testPromptID)
	if !errors.Is(err, domain.ErrPromptNotFound) {
		t.Fatalf("expected ErrPromptNotFound, got %v", err)
	}
}

func TestSavePromptsEncodesBatch(t *testing.T) {
	sql := newStubSQL()
	var payload []map[string]any
	sql.exec[sqlinline.QInsertPrompts] = func(args ...any) (pgconn.CommandTag, error) {
		if args[0] != testAnalysisID {
			t.Fatalf("analysis arg = %v", args[0])
		}
		if err := json.Unmarshal(args[1].([]byte), &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		return pgconn.NewCommandTag("INSERT 0 2"), nil
	}

	prompts := []domain.VideoPrompt{
		{ID: "p1", TemplateID: "t1", Title: "One", Description: "desc", Confidence: 140, Category: domain.CategoryEntrance},
		{ID: "p2", TemplateID: "t2", Title: "Two", Description: "desc", Confidence: 50, Category: domain.CategoryMagical, Tags: []string{"door"}},
	}
	if err := NewAnalysisRepository(sql).SavePrompts(context.Background(), testAnalysisID, prompts); err != nil {
		t.Fatalf("SavePrompts returned error: %v", err)
	}
	if len(payload) != 2 {
		t.Fatalf("payload size = %d", len(payload))
	}
	if payload[0]["confidence"].(float64) != 100 {
		t.Fatalf("confidence not clamped: %v", payload[0]["confidence"])
	}
	if tags, ok := payload[0]["tags"].([]any); !ok || len(tags) != 0 {
		t.Fatalf("expected empty tags array, got %v", payload[0]["tags"])
	}
}

func TestGetAnalysisDecodesJSONColumns(t *testing.T) {
	sql := newStubSQL()
	sql.queryRow[sqlinline.QSelectAnalysis] = func(args ...any) pgx.Row {
		return simpleRow{scan: func(dest ...any) error {
			*dest[0].(*string) = "analysis-1"
			*dest[1].(*string) = "analyses/analysis-1.jpg"
			*dest[2].(*[]byte) = []byte(`[{"type":"front","position":"center"}]`)
			*dest[3].(*[]byte) = []byte(`[]`)
			*dest[4].(*[]byte) = []byte(`{"has_wreath":true}`)
			*dest[5].(*[]byte) = []byte(`["sofa"]`)
			*dest[6].(*[]byte) = []byte(`[]`)
			*dest[7].(*[]byte) = []byte(`{"lighting":"bright","visibility":"good"}`)
			*dest[8].(*int) = 80
			*dest[9].(*[]byte) = []byte(`["keep the door visible"]`)
			return nil
		}}
	}

	a, err := NewAnalysisRepository(sql).GetAnalysis(context.Background(), testAnalysisID)
	if err != nil {
		t.Fatalf("GetAnalysis returned error: %v", err)
	}
	if len(a.Doors) != 1 || a.Doors[0].Position != "center" {
		t.Fatalf("doors = %+v", a.Doors)
	}
	if !a.Decorations.HasWreath || a.Layout.Lighting != domain.LightingBright {
		t.Fatalf("decoded analysis = %+v", a)
	}
}

func TestMalformedIDsMapToNotFound(t *testing.T) {
	ctx := context.Background()
	sql := newStubSQL()
	orders := NewOrderRepository(sql)
	analyses := NewAnalysisRepository(sql)

	for _, id := range []string{"abc", "", "order-1", "5b1d3c52-8f0e-4a51-9a6e"} {
		if _, err := orders.GetByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetByID(%q) = %v, want ErrNotFound", id, err)
		}
		if err := orders.MarkProcessing(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("MarkProcessing(%q) = %v, want ErrNotFound", id, err)
		}
		if _, err := orders.ResetForRetry(ctx, id, domain.MaxRetries); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("ResetForRetry(%q) = %v, want ErrNotFound", id, err)
		}
		if err := orders.SetPaymentStatus(ctx, id, domain.PaymentUpdate{Status: domain.PaymentFailed}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("SetPaymentStatus(%q) = %v, want ErrNotFound", id, err)
		}
		if _, err := analyses.GetAnalysis(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetAnalysis(%q) = %v, want ErrNotFound", id, err)
		}
		if _, err := analyses.GetPrompt(ctx, id); !errors.Is(err, domain.ErrPromptNotFound) {
			t.Fatalf("GetPrompt(%q) = %v, want ErrPromptNotFound", id, err)
		}
		if err := analyses.SelectPrompt(ctx, testAnalysisID, id); !errors.Is(err, domain.ErrPromptNotFound) {
			t.Fatalf("SelectPrompt(%q) = %v, want ErrPromptNotFound", id, err)
		}
		if _, err := analyses.UpdatePromptText(ctx, id, "a long enough replacement text"); !errors.Is(err, domain.ErrPromptNotFound) {
			t.Fatalf("UpdatePromptText(%q) = %v, want ErrPromptNotFound", id, err)
		}
		if prompts, err := analyses.ListPrompts(ctx, id); err != nil || len(prompts) != 0 {
			t.Fatalf("ListPrompts(%q) = %v, %v", id, prompts, err)
		}
	}
	if len(sql.calls) != 0 {
		t.Fatalf("malformed ids reached the database: %d calls", len(sql.calls))
	}
}

func TestIDsAreCanonicalized(t *testing.T) {
	sql := newStubSQL()
	sql.exec[sqlinline.QMarkOrderProcessing] = rowsAffected(1)

	upper := "5B1D3C52-8F0E-4A51-9A6E-2F7C1D9E4B10"
	if err := NewOrderRepository(sql).MarkProcessing(context.Background(), upper); err != nil {
		t.Fatalf("MarkProcessing returned error: %v", err)
	}
	if got := sql.calls[0].args[0]; got != testOrderID {
		t.Fatalf("order id arg = %v, want %s", got, testOrderID)
	}
}

func TestLatePaymentFailureCannotReplaceCompleted(t *testing.T) {
	sql := newStubSQL()
	sql.exec[sqlinline.QUpdateOrderPayment] = rowsAffected(0)
	sql.queryRow[sqlinline.QSelectOrderProcessingState] = stateRow("completed", 0)

	err := NewOrderRepository(sql).SetPaymentStatus(context.Background(), testOrderID, domain.PaymentUpdate{Status: domain.PaymentFailed})
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if !strings.Contains(sqlinline.QUpdateOrderPayment, "payment_status = 'completed'") {
		t.Fatal("payment update must guard completed payments")
	}
}

func TestSetPaymentStatusMissingOrder(t *testing.T) {
	sql := newStubSQL()
	sql.exec[sqlinline.QUpdateOrderPayment] = rowsAffected(0)

	err := NewOrderRepository(sql).SetPaymentStatus(context.Background(), testOrderID, domain.PaymentUpdate{Status: domain.PaymentCompleted})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
