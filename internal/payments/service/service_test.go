package service

import (
	"context"
	"errors"
	"testing"

	"eventcover_backend/internal/payments/gateway"
	"eventcover_backend/internal/payments/repository"
	"eventcover_backend/internal/payments/transport"
	policyrepo "eventcover_backend/internal/policies/repository"
	policysvc "eventcover_backend/internal/policies/service"
	quoterepo "eventcover_backend/internal/quotes/repository"
	"eventcover_backend/platform/apperr"
	platformevents "eventcover_backend/platform/events"
	"eventcover_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeLedger struct {
	inserted  []repository.Payment
	committed bool
	insertErr error
}

func (f *fakeLedger) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeLedger) InsertTx(ctx context.Context, tx pgx.Tx, p *repository.Payment) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *p)
	return nil
}

func (f *fakeLedger) GetByID(ctx context.Context, id uuid.UUID) (*repository.Payment, error) {
	for i := range f.inserted {
		if f.inserted[i].ID == id {
			return &f.inserted[i], nil
		}
	}
	return nil, apperr.NotFound("payment not found")
}

func (f *fakeLedger) List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error) {
	return &repository.ListResult{Items: f.inserted, Total: len(f.inserted), Page: params.Page, PageSize: params.PageSize}, nil
}

type fakeQuotes struct {
	byNumber map[string]*quoterepo.Quote
}

func (f *fakeQuotes) GetByNumber(ctx context.Context, quoteNumber string) (*quoterepo.Quote, error) {
	q, ok := f.byNumber[quoteNumber]
	if !ok {
		return nil, apperr.NotFound("quote not found")
	}
	copied := *q
	return &copied, nil
}

type fakeConverter struct {
	calls   int
	err     error
	outcome *policysvc.ConvertOutcome
}

func (f *fakeConverter) ConvertInTx(ctx context.Context, tx pgx.Tx, quoteNumber string, force bool) (*policysvc.ConvertOutcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type fakeGateway struct {
	result *gateway.Result
	err    error
	charges []gateway.Charge
}

func (f *fakeGateway) Charge(ctx context.Context, req gateway.Charge) (*gateway.Result, error) {
	f.charges = append(f.charges, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type nopBus struct{ published []platformevents.Event }

func (b *nopBus) Publish(ctx context.Context, event platformevents.Event) {
	b.published = append(b.published, event)
}
func (b *nopBus) PublishSync(ctx context.Context, event platformevents.Event) error {
	b.published = append(b.published, event)
	return nil
}
func (b *nopBus) Subscribe(eventName string, handler platformevents.Handler) {}

func seedQuote(quotes *fakeQuotes, converted bool, status string) *quoterepo.Quote {
	q := &quoterepo.Quote{
		ID:                uuid.New(),
		QuoteNumber:       "EVQ-TEST0001",
		Email:             "payer@example.com",
		TotalPremiumCents: 54500,
		Status:            status,
		Source:            "CUSTOMER",
		ConvertedToPolicy: converted,
	}
	quotes.byNumber[q.QuoteNumber] = q
	return q
}

func issuedOutcome() *policysvc.ConvertOutcome {
	return &policysvc.ConvertOutcome{
		Policy: &policyrepo.Policy{
			ID:           uuid.New(),
			PolicyNumber: "EVP-TEST0001",
			Status:       policysvc.PolicyStatusActive,
		},
	}
}

// ── Manual path ───────────────────────────────────────────────────────────────

func TestRecordManualSuccessConvertsQuote(t *testing.T) {
	ledger := &fakeLedger{}
	quotes := &fakeQuotes{byNumber: make(map[string]*quoterepo.Quote)}
	q := seedQuote(quotes, false, "STEP3")
	converter := &fakeConverter{outcome: issuedOutcome()}
	bus := &nopBus{}

	svc := New(ledger, quotes, nil, bus, logger.New("test"))
	svc.SetConverter(converter)

	entry, err := svc.RecordManual(context.Background(), transport.RecordPaymentRequest{
		QuoteNumber: q.QuoteNumber,
		AmountCents: 54500,
		Method:      transport.MethodCheck,
		Status:      transport.StatusSuccess,
		Reference:   "check #1042",
	})
	if err != nil {
		t.Fatalf("RecordManual: %v", err)
	}

	if converter.calls != 1 {
		t.Fatalf("converter calls = %d, want 1", converter.calls)
	}
	if entry.PolicyNumber != "EVP-TEST0001" {
		t.Fatalf("policy number = %q, want EVP-TEST0001", entry.PolicyNumber)
	}
	if entry.Payment.PolicyID == nil {
		t.Fatal("payment not linked to issued policy")
	}
	if len(ledger.inserted) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(ledger.inserted))
	}
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
}

func TestRecordManualFailedPaymentDoesNotConvert(t *testing.T) {
	ledger := &fakeLedger{}
	quotes := &fakeQuotes{byNumber: make(map[string]*quoterepo.Quote)}
	q := seedQuote(quotes, false, "STEP3")
	converter := &fakeConverter{outcome: issuedOutcome()}

	svc := New(ledger, quotes, nil, &nopBus{}, logger.New("test"))
	svc.SetConverter(converter)

	entry, err := svc.RecordManual(context.Background(), transport.RecordPaymentRequest{
		QuoteNumber: q.QuoteNumber,
		AmountCents: 54500,
		Method:      transport.MethodCheck,
		Status:      transport.StatusFailed,
	})
	if err != nil {
		t.Fatalf("RecordManual: %v", err)
	}
	if converter.calls != 0 {
		t.Fatalf("converter calls = %d, want 0", converter.calls)
	}
	if entry.Payment.PolicyID != nil {
		t.Fatal("failed payment linked to a policy")
	}
	if len(ledger.inserted) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(ledger.inserted))
	}
}

func TestRecordManualWithoutQuoteReference(t *testing.T) {
	ledger := &fakeLedger{}
	quotes := &fakeQuotes{byNumber: make(map[string]*quoterepo.Quote)}
	converter := &fakeConverter{outcome: issuedOutcome()}

	svc := New(ledger, quotes, nil, &nopBus{}, logger.New("test"))
	svc.SetConverter(converter)

	entry, err := svc.RecordManual(context.Background(), transport.RecordPaymentRequest{
		AmountCents: 10000,
		Method:      transport.MethodCash,
		Status:      transport.StatusSuccess,
	})
	if err != nil {
		t.Fatalf("RecordManual: %v", err)
	}
	if converter.calls != 0 {
		t.Fatalf("converter calls = %d, want 0", converter.calls)
	}
	if entry.Payment.QuoteID != nil {
		t.Fatal("payment carries a quote id without a reference")
	}
}

func TestRecordManualConversionFailureRollsBack(t *testing.T) {
	ledger := &fakeLedger{}
	quotes := &fakeQuotes{byNumber: make(map[string]*quoterepo.Quote)}
	q := seedQuote(quotes, false, "STEP2")
	converter := &fakeConverter{err: apperr.Conflict("quote is missing policy holder details")}

	svc := New(ledger, quotes, nil, &nopBus{}, logger.New("test"))
	svc.SetConverter(converter)

	_, err := svc.RecordManual(context.Background(), transport.RecordPaymentRequest{
		QuoteNumber: q.QuoteNumber,
		AmountCents: 54500,
		Method:      transport.MethodCheck,
		Status:      transport.StatusSuccess,
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if len(ledger.inserted) != 0 {
		t.Fatal("payment persisted despite conversion failure")
	}
}

// ── Gateway path ──────────────────────────────────────────────────────────────

func TestChargeApprovedRecordsAndConverts(t *testing.T) {
	ledger := &fakeLedger{}
	quotes := &fakeQuotes{byNumber: make(map[string]*quoterepo.Quote)}
	q := seedQuote(quotes, false, "STEP3")
	converter := &fakeConverter{outcome: issuedOutcome()}
	gw := &fakeGateway{result: &gateway.Result{ID: "918273645", Approved: true, Detail: "accredited"}}
	bus := &nopBus{}

	svc := New(ledger, quotes, gw, bus, logger.New("test"))
	svc.SetConverter(converter)

	entry, err := svc.Charge(context.Background(), transport.ChargeRequest{
		QuoteNumber:     q.QuoteNumber,
		CardToken:       "tok_abc",
		PaymentMethodID: "visa",
		Installments:    1,
	})
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}

	if len(gw.charges) != 1 {
		t.Fatalf("gateway charges = %d, want 1", len(gw.charges))
	}
	if gw.charges[0].AmountCents != 54500 {
		t.Fatalf("charged %d, want the quote premium 54500", gw.charges[0].AmountCents)
	}
	if entry.Payment.GatewayID == nil || *entry.Payment.GatewayID != "918273645" {
		t.Fatal("gateway id not recorded on the ledger row")
	}
	if entry.PolicyNumber != "EVP-TEST0001" {
		t.Fatalf("policy number = %q, want EVP-TEST0001", entry.PolicyNumber)
	}
	if len(ledger.inserted) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(ledger.inserted))
	}
}

func TestChargeDeclinedPersistsNothing(t *testing.T) {
	ledger := &fakeLedger{}
	quotes := &fakeQuotes{byNumber: make(map[string]*quoterepo.Quote)}
	q := seedQuote(quotes, false, "STEP3")
	converter := &fakeConverter{outcome: issuedOutcome()}
	gw := &fakeGateway{result: &gateway.Result{ID: "1", Approved: false, Detail: "cc_rejected_insufficient_amount"}}

	svc := New(ledger, quotes, gw, &nopBus{}, logger.New("test"))
	svc.SetConverter(converter)

	_, err := svc.Charge(context.Background(), transport.ChargeRequest{
		QuoteNumber:     q.QuoteNumber,
		CardToken:       "tok_abc",
		PaymentMethodID: "visa",
	})
	if !apperr.Is(err, apperr.KindGatewayDeclined) {
		t.Fatalf("err = %v, want gateway declined", err)
	}
	if converter.calls != 0 {
		t.Fatal("declined charge attempted conversion")
	}
	if len(ledger.inserted) != 0 {
		t.Fatal("declined charge persisted a ledger row")
	}
}

func TestChargeGatewayUnavailable(t *testing.T) {
	ledger := &fakeLedger{}
	quotes := &fakeQuotes{byNumber: make(map[string]*quoterepo.Quote)}
	q := seedQuote(quotes, false, "STEP3")
	gw := &fakeGateway{err: apperr.GatewayUnavailable("payment gateway unreachable", errors.New("dial timeout"))}

	svc := New(ledger, quotes, gw, &nopBus{}, logger.New("test"))
	svc.SetConverter(&fakeConverter{outcome: issuedOutcome()})

	_, err := svc.Charge(context.Background(), transport.ChargeRequest{
		QuoteNumber:     q.QuoteNumber,
		CardToken:       "tok_abc",
		PaymentMethodID: "visa",
	})
	if !apperr.Is(err, apperr.KindGatewayUnavailable) {
		t.Fatalf("err = %v, want gateway unavailable", err)
	}
	if len(ledger.inserted) != 0 {
		t.Fatal("unavailable gateway persisted a ledger row")
	}
}

func TestChargeRejectsConvertedQuote(t *testing.T) {
	ledger := &fakeLedger{}
	quotes := &fakeQuotes{byNumber: make(map[string]*quoterepo.Quote)}
	q := seedQuote(quotes, true, "COMPLETE")
	gw := &fakeGateway{result: &gateway.Result{ID: "1", Approved: true}}

	svc := New(ledger, quotes, gw, &nopBus{}, logger.New("test"))
	svc.SetConverter(&fakeConverter{outcome: issuedOutcome()})

	_, err := svc.Charge(context.Background(), transport.ChargeRequest{
		QuoteNumber:     q.QuoteNumber,
		CardToken:       "tok_abc",
		PaymentMethodID: "visa",
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if len(gw.charges) != 0 {
		t.Fatal("converted quote was charged")
	}
}

func TestChargeLedgerFailureSurfacesAfterCapture(t *testing.T) {
	ledger := &fakeLedger{insertErr: errors.New("connection reset")}
	quotes := &fakeQuotes{byNumber: make(map[string]*quoterepo.Quote)}
	q := seedQuote(quotes, false, "STEP3")
	gw := &fakeGateway{result: &gateway.Result{ID: "5", Approved: true}}

	svc := New(ledger, quotes, gw, &nopBus{}, logger.New("test"))
	svc.SetConverter(&fakeConverter{outcome: issuedOutcome()})

	_, err := svc.Charge(context.Background(), transport.ChargeRequest{
		QuoteNumber:     q.QuoteNumber,
		CardToken:       "tok_abc",
		PaymentMethodID: "visa",
	})
	if err == nil {
		t.Fatal("ledger failure after capture returned no error")
	}
	// Funds were captured; the caller reconciles against the gateway id.
	if len(gw.charges) != 1 {
		t.Fatalf("gateway charges = %d, want 1", len(gw.charges))
	}
}

