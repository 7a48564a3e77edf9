// Package fixtures provides receipt texts and learned-pattern seeding for tests.
//
// Example usage:
//
//	err := fixtures.NewBuilder(t).
//		WithApproved("tenant-1", "customer-1", "TEST MERCHANT", "001234567", 3).
//		WithRejected("tenant-1", "customer-1", "TEST MERCHANT", "001234567", 1).
//		Build(ctx, storage)
package fixtures

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/service"
	"github.com/shopspring/decimal"
)

// Builder provides a fluent interface for seeding recipient patterns.
type Builder interface {
	// WithApproved records n approvals of a (name, account) pair.
	WithApproved(tenantID, customerID, name, account string, n int) Builder

	// WithRejected records n rejections of a (name, account) pair.
	WithRejected(tenantID, customerID, name, account string, n int) Builder

	// WithAmounts adds amounts to a customer's history.
	WithAmounts(tenantID, customerID string, amounts ...int64) Builder

	// SeenAt sets the timestamp used for subsequent events.
	SeenAt(t time.Time) Builder

	// Build writes every event to storage in order.
	Build(ctx context.Context, storage service.PatternStore) error
}

type event struct {
	seenAt     time.Time
	tenantID   string
	customerID string
	name       string
	account    string
	amounts    []int64
	approvals  int
	rejections int
}

type builder struct {
	seenAt time.Time
	t      *testing.T
	events []event
}

// NewBuilder creates a Builder. Names and accounts are stored as given, so
// pass them already normalized.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &builder{t: t, seenAt: time.Now().UTC()}
}

func (b *builder) WithApproved(tenantID, customerID, name, account string, n int) Builder {
	b.events = append(b.events, event{
		seenAt: b.seenAt, tenantID: tenantID, customerID: customerID,
		name: name, account: account, approvals: n,
	})
	return b
}

func (b *builder) WithRejected(tenantID, customerID, name, account string, n int) Builder {
	b.events = append(b.events, event{
		seenAt: b.seenAt, tenantID: tenantID, customerID: customerID,
		name: name, account: account, rejections: n,
	})
	return b
}

func (b *builder) WithAmounts(tenantID, customerID string, amounts ...int64) Builder {
	b.events = append(b.events, event{
		seenAt: b.seenAt, tenantID: tenantID, customerID: customerID, amounts: amounts,
	})
	return b
}

func (b *builder) SeenAt(t time.Time) Builder {
	b.seenAt = t.UTC()
	return b
}

func (b *builder) Build(ctx context.Context, storage service.PatternStore) error {
	b.t.Helper()
	for _, ev := range b.events {
		err := storage.UpdateCustomerPatterns(ctx, ev.tenantID, ev.customerID, func(doc *model.CustomerPatterns) error {
			if ev.approvals > 0 || ev.rejections > 0 {
				p := doc.FindOrCreate(ev.name, ev.account)
				for i := 0; i < ev.approvals; i++ {
					p.Record(true, ev.seenAt)
				}
				for i := 0; i < ev.rejections; i++ {
					p.Record(false, ev.seenAt)
				}
			}
			for _, amt := range ev.amounts {
				doc.Amounts = append(doc.Amounts, model.AmountRecord{Amount: decimal.NewFromInt(amt), SeenAt: ev.seenAt})
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to seed patterns for %s/%s: %w", ev.tenantID, ev.customerID, err)
		}
	}
	return nil
}

// Patterns wraps a loaded learning document for assertions.
type Patterns struct {
	Doc *model.CustomerPatterns
}

// MustFind returns the pattern for (name, account) or fails the test.
func (p Patterns) MustFind(t *testing.T, name, account string) model.RecipientPattern {
	t.Helper()
	found := p.Doc.Find(name, account)
	if found == nil {
		t.Fatalf("pattern %q/%q not found among %d patterns", name, account, len(p.Doc.Patterns))
	}
	return *found
}
