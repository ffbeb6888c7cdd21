package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"eventcover_backend/internal/adapters/storage"
	"eventcover_backend/internal/policies/repository"
	"eventcover_backend/internal/policies/transport"
	quoterepo "eventcover_backend/internal/quotes/repository"
	"eventcover_backend/platform/apperr"
	platformevents "eventcover_backend/platform/events"
	"eventcover_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

// fakeTx satisfies pgx.Tx for the methods the service touches. Everything
// else panics, which would flag an unexpected call in a test.
type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeStore struct {
	quotes       map[string]*repository.ConversionQuote // by quote number
	policies     map[uuid.UUID]*repository.Policy       // by policy id
	byQuote      map[uuid.UUID]*repository.Policy
	versions     map[uuid.UUID][]repository.Version
	converted    map[uuid.UUID]bool
	premiumWrite int64
}

func newPolicyStore() *fakeStore {
	return &fakeStore{
		quotes:    make(map[string]*repository.ConversionQuote),
		policies:  make(map[uuid.UUID]*repository.Policy),
		byQuote:   make(map[uuid.UUID]*repository.Policy),
		versions:  make(map[uuid.UUID][]repository.Version),
		converted: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeStore) LockQuoteForConversionTx(ctx context.Context, tx pgx.Tx, quoteNumber string) (*repository.ConversionQuote, error) {
	q, ok := f.quotes[quoteNumber]
	if !ok {
		return nil, apperr.NotFound("quote not found")
	}
	copied := *q
	return &copied, nil
}

func (f *fakeStore) InsertPolicyTx(ctx context.Context, tx pgx.Tx, p *repository.Policy) error {
	if _, exists := f.byQuote[p.QuoteID]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "policies_quote_id_key"}
	}
	copied := *p
	f.policies[p.ID] = &copied
	f.byQuote[p.QuoteID] = &copied
	return nil
}

func (f *fakeStore) MarkQuoteConvertedTx(ctx context.Context, tx pgx.Tx, quoteID uuid.UUID, now time.Time) error {
	f.converted[quoteID] = true
	for _, q := range f.quotes {
		if q.ID == quoteID {
			q.ConvertedToPolicy = true
			q.Status = "COMPLETE"
		}
	}
	return nil
}

func (f *fakeStore) GetByQuoteIDTx(ctx context.Context, tx pgx.Tx, quoteID uuid.UUID) (*repository.Policy, error) {
	p, ok := f.byQuote[quoteID]
	if !ok {
		return nil, apperr.NotFound("policy not found")
	}
	return p, nil
}

func (f *fakeStore) GetByQuoteNumber(ctx context.Context, quoteNumber string) (*repository.Policy, error) {
	q, ok := f.quotes[quoteNumber]
	if !ok {
		return nil, apperr.NotFound("quote not found")
	}
	p, ok := f.byQuote[q.ID]
	if !ok {
		return nil, apperr.NotFound("policy not found")
	}
	return p, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*repository.Policy, error) {
	p, ok := f.policies[id]
	if !ok {
		return nil, apperr.NotFound("policy not found")
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) UpdatePremiumTx(ctx context.Context, tx pgx.Tx, policyID uuid.UUID, totalCents int64, now time.Time) error {
	f.premiumWrite = totalCents
	if p, ok := f.policies[policyID]; ok {
		p.TotalPremiumCents = totalCents
		p.UpdatedAt = now
	}
	return nil
}

func (f *fakeStore) InsertVersionTx(ctx context.Context, tx pgx.Tx, v *repository.Version) error {
	f.versions[v.PolicyID] = append(f.versions[v.PolicyID], *v)
	return nil
}

func (f *fakeStore) PruneVersionsTx(ctx context.Context, tx pgx.Tx, policyID uuid.UUID, keep int) ([]string, error) {
	versions := f.versions[policyID]
	sort.Slice(versions, func(i, j int) bool { return versions[i].CreatedAt.After(versions[j].CreatedAt) })
	if len(versions) <= keep {
		f.versions[policyID] = versions
		return nil, nil
	}
	var pruned []string
	for _, v := range versions[keep:] {
		pruned = append(pruned, v.ArtifactKey)
	}
	f.versions[policyID] = versions[:keep]
	return pruned, nil
}

func (f *fakeStore) ListVersions(ctx context.Context, policyID uuid.UUID) ([]repository.Version, error) {
	return f.versions[policyID], nil
}

func (f *fakeStore) List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error) {
	result := &repository.ListResult{Page: params.Page, PageSize: params.PageSize}
	for _, p := range f.policies {
		result.Items = append(result.Items, *p)
	}
	result.Total = len(result.Items)
	return result, nil
}

type fakeQuoteStore struct {
	graphs map[uuid.UUID]*quoterepo.Graph
}

func (f *fakeQuoteStore) GetGraphByID(ctx context.Context, id uuid.UUID) (*quoterepo.Graph, error) {
	g, ok := f.graphs[id]
	if !ok {
		return nil, apperr.NotFound("quote not found")
	}
	copied := *g
	return &copied, nil
}

func (f *fakeQuoteStore) UpdateGraphInTx(ctx context.Context, tx pgx.Tx, quote *quoterepo.Quote, event *quoterepo.Event, venues []quoterepo.Venue, replaceVenues bool, holder *quoterepo.PolicyHolder) error {
	g, ok := f.graphs[quote.ID]
	if !ok {
		return apperr.NotFound("quote not found")
	}
	g.Quote = *quote
	if event != nil {
		g.Event = event
	}
	if replaceVenues {
		g.Venues = venues
	}
	if holder != nil {
		g.Holder = holder
	}
	return nil
}

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) ConvertHTML(ctx context.Context, indexHTML []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-stub"), nil
}

type fakeArtifacts struct {
	objects        map[string][]byte
	deleted        []string
	deleteFailures int
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{objects: make(map[string][]byte)}
}

func (f *fakeArtifacts) Put(ctx context.Context, bucket, key, contentType string, reader io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.objects[bucket+"/"+key] = data
	return key, nil
}

func (f *fakeArtifacts) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeArtifacts) Delete(ctx context.Context, bucket, key string) error {
	if f.deleteFailures > 0 {
		f.deleteFailures--
		return errors.New("storage unavailable")
	}
	delete(f.objects, bucket+"/"+key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeArtifacts) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, ok := f.objects[bucket+"/"+key]
	return ok, nil
}

func (f *fakeArtifacts) GenerateDownloadURL(ctx context.Context, bucket, key string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://minio.test/" + bucket + "/" + key, FileKey: key}, nil
}

type recordingBus struct{ published []platformevents.Event }

func (b *recordingBus) Publish(ctx context.Context, event platformevents.Event) {
	b.published = append(b.published, event)
}
func (b *recordingBus) PublishSync(ctx context.Context, event platformevents.Event) error {
	b.published = append(b.published, event)
	return nil
}
func (b *recordingBus) Subscribe(eventName string, handler platformevents.Handler) {}

// ── Fixtures ──────────────────────────────────────────────────────────────────

type fixture struct {
	svc       *Service
	store     *fakeStore
	quotes    *fakeQuoteStore
	renderer  *fakeRenderer
	artifacts *fakeArtifacts
	bus       *recordingBus
}

func newFixture() *fixture {
	store := newPolicyStore()
	quotes := &fakeQuoteStore{graphs: make(map[uuid.UUID]*quoterepo.Graph)}
	renderer := &fakeRenderer{}
	artifacts := newFakeArtifacts()
	bus := &recordingBus{}
	svc := New(store, quotes, renderer, artifacts, "policy-documents", bus, logger.New("test"))
	return &fixture{svc: svc, store: store, quotes: quotes, renderer: renderer, artifacts: artifacts, bus: bus}
}

func (f *fixture) seedQuote(status, source string, withHolder bool) *repository.ConversionQuote {
	quoteID := uuid.New()
	eventID := uuid.New()
	q := &repository.ConversionQuote{
		ID:                quoteID,
		QuoteNumber:       fmt.Sprintf("EVQ-%s", quoteID.String()[:8]),
		Email:             "holder@example.com",
		Status:            status,
		Source:            source,
		TotalPremiumCents: 54500,
		EventID:           &eventID,
	}
	graph := &quoterepo.Graph{
		Quote: quoterepo.Quote{
			ID:                    quoteID,
			QuoteNumber:           q.QuoteNumber,
			Email:                 q.Email,
			CoverageLevel:         3,
			LiabilityOption:       "option2",
			LiquorLiability:       true,
			BasePremiumCents:      25000,
			LiabilityPremiumCents: 21000,
			LiquorPremiumCents:    8500,
			TotalPremiumCents:     54500,
			Status:                status,
			Source:                source,
		},
		Event: &quoterepo.Event{ID: eventID, QuoteID: quoteID, EventType: "wedding", MaxGuests: 120},
	}
	if withHolder {
		holderID := uuid.New()
		q.PolicyHolderID = &holderID
		graph.Holder = &quoterepo.PolicyHolder{
			ID: holderID, QuoteID: quoteID,
			FirstName: "Ada", LastName: "Byron",
			Address: "1 Main St", City: "Austin", State: "TX", Zip: "78701", Country: "US",
		}
	}
	f.store.quotes[q.QuoteNumber] = q
	f.quotes.graphs[quoteID] = graph
	return q
}

func (f *fixture) issuePolicy(t *testing.T, quoteNumber string) *repository.Policy {
	t.Helper()
	outcome, err := f.svc.Convert(context.Background(), quoteNumber, false)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	return outcome.Policy
}

// ── Conversion ────────────────────────────────────────────────────────────────

func TestConvertIssuesPolicy(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "CUSTOMER", true)

	outcome, err := f.svc.Convert(context.Background(), q.QuoteNumber, false)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if outcome.AlreadyConverted {
		t.Fatal("first conversion flagged as already converted")
	}
	p := outcome.Policy
	if p.PolicyNumber[:4] != "EVP-" {
		t.Fatalf("policy number %q lacks prefix", p.PolicyNumber)
	}
	if p.TotalPremiumCents != 54500 {
		t.Fatalf("premium = %d, want 54500", p.TotalPremiumCents)
	}
	if p.Status != PolicyStatusActive {
		t.Fatalf("status = %s, want %s", p.Status, PolicyStatusActive)
	}
	if !f.store.converted[q.ID] {
		t.Fatal("quote not marked converted")
	}
	if len(f.bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(f.bus.published))
	}
}

func TestConvertIsIdempotent(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "CUSTOMER", true)
	ctx := context.Background()

	first, err := f.svc.Convert(ctx, q.QuoteNumber, false)
	if err != nil {
		t.Fatalf("first Convert: %v", err)
	}
	second, err := f.svc.Convert(ctx, q.QuoteNumber, false)
	if err != nil {
		t.Fatalf("second Convert: %v", err)
	}
	if !second.AlreadyConverted {
		t.Fatal("second conversion not flagged already converted")
	}
	if second.Policy.PolicyNumber != first.Policy.PolicyNumber {
		t.Fatal("second conversion issued a different policy")
	}
	if len(f.bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(f.bus.published))
	}
}

func TestConvertAdminQuoteRequiresForce(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "ADMIN", true)
	ctx := context.Background()

	_, err := f.svc.Convert(ctx, q.QuoteNumber, false)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	outcome, err := f.svc.Convert(ctx, q.QuoteNumber, true)
	if err != nil {
		t.Fatalf("forced Convert: %v", err)
	}
	if outcome.Policy == nil {
		t.Fatal("forced conversion returned no policy")
	}
}

func TestConvertRejectsExpiredQuote(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("EXPIRED", "CUSTOMER", true)

	_, err := f.svc.Convert(context.Background(), q.QuoteNumber, false)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestConvertRequiresPolicyHolder(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP2", "CUSTOMER", false)

	_, err := f.svc.Convert(context.Background(), q.QuoteNumber, false)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestConvertRaceLoserGetsWinnersPolicy(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "CUSTOMER", true)
	ctx := context.Background()

	winner := f.issuePolicy(t, q.QuoteNumber)

	// Simulate the loser: its snapshot predates the winner's commit, so the
	// insert hits the unique constraint.
	f.store.quotes[q.QuoteNumber].ConvertedToPolicy = false
	f.store.quotes[q.QuoteNumber].Status = "STEP3"
	outcome, err := f.svc.Convert(ctx, q.QuoteNumber, false)
	if err != nil {
		t.Fatalf("loser Convert: %v", err)
	}
	if !outcome.AlreadyConverted {
		t.Fatal("loser not told the quote was already converted")
	}
	if outcome.Policy.PolicyNumber != winner.PolicyNumber {
		t.Fatal("loser did not receive the winner's policy")
	}
}

// ── Amendments ────────────────────────────────────────────────────────────────

func TestAmendSnapshotsBeforeApplying(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "CUSTOMER", true)
	policy := f.issuePolicy(t, q.QuoteNumber)
	ctx := context.Background()

	level := 5
	updatedPolicy, updatedGraph, err := f.svc.Amend(ctx, policy.ID, transport.AmendPolicyRequest{
		Reason:        "coverage upgrade",
		CoverageLevel: &level,
	})
	if err != nil {
		t.Fatalf("Amend: %v", err)
	}

	versions := f.store.versions[policy.ID]
	if len(versions) != 1 {
		t.Fatalf("versions = %d, want 1", len(versions))
	}

	var snap struct {
		Quote struct {
			CoverageLevel     int   `json:"CoverageLevel"`
			TotalPremiumCents int64 `json:"TotalPremiumCents"`
		} `json:"quote"`
	}
	if err := json.Unmarshal(versions[0].Snapshot, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.Quote.CoverageLevel != 3 {
		t.Fatalf("snapshot coverage = %d, want pre-amendment 3", snap.Quote.CoverageLevel)
	}
	if snap.Quote.TotalPremiumCents != 54500 {
		t.Fatalf("snapshot premium = %d, want pre-amendment 54500", snap.Quote.TotalPremiumCents)
	}

	if updatedGraph.Quote.CoverageLevel != 5 {
		t.Fatalf("applied coverage = %d, want 5", updatedGraph.Quote.CoverageLevel)
	}
	// level 5 base 34000 + option2 21000 + liquor standard band 101-150 8500
	if updatedPolicy.TotalPremiumCents != 63500 {
		t.Fatalf("policy premium = %d, want 63500", updatedPolicy.TotalPremiumCents)
	}

	if _, ok := f.artifacts.objects["policy-documents/"+versions[0].ArtifactKey]; !ok {
		t.Fatal("version artifact not stored")
	}
}

func TestAmendPrunesBeyondRetention(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "CUSTOMER", true)
	policy := f.issuePolicy(t, q.QuoteNumber)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < versionRetention; i++ {
		key := fmt.Sprintf("policies/%s/versions/old-%02d.pdf", policy.PolicyNumber, i)
		f.store.versions[policy.ID] = append(f.store.versions[policy.ID], repository.Version{
			ID:          uuid.New(),
			PolicyID:    policy.ID,
			ArtifactKey: key,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		})
		f.artifacts.objects["policy-documents/"+key] = []byte("old")
	}

	email := "new@example.com"
	if _, _, err := f.svc.Amend(ctx, policy.ID, transport.AmendPolicyRequest{Email: &email}); err != nil {
		t.Fatalf("Amend: %v", err)
	}

	if got := len(f.store.versions[policy.ID]); got != versionRetention {
		t.Fatalf("versions after prune = %d, want %d", got, versionRetention)
	}
	if len(f.artifacts.deleted) != 1 {
		t.Fatalf("deleted artifacts = %d, want 1", len(f.artifacts.deleted))
	}
	// the oldest snapshot goes
	if f.artifacts.deleted[0] != fmt.Sprintf("policies/%s/versions/old-00.pdf", policy.PolicyNumber) {
		t.Fatalf("pruned wrong artifact: %s", f.artifacts.deleted[0])
	}
}

func TestAmendWithoutRendererFailsCleanly(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "CUSTOMER", true)
	policy := f.issuePolicy(t, q.QuoteNumber)
	// cmd/api wires a nil renderer when no converter endpoint is configured.
	f.svc.renderer = nil

	level := 7
	_, _, err := f.svc.Amend(context.Background(), policy.ID, transport.AmendPolicyRequest{CoverageLevel: &level})
	if !apperr.Is(err, apperr.KindArtifact) {
		t.Fatalf("Amend err = %v, want artifact error", err)
	}
	if len(f.store.versions[policy.ID]) != 0 {
		t.Fatal("version recorded without a renderer")
	}
	if graph := f.quotes.graphs[q.ID]; graph.Quote.CoverageLevel != 3 {
		t.Fatalf("amendment applied without a renderer: coverage = %d", graph.Quote.CoverageLevel)
	}

	if _, err := f.svc.IssueDeclaration(context.Background(), policy.ID); !apperr.Is(err, apperr.KindArtifact) {
		t.Fatalf("IssueDeclaration err = %v, want artifact error", err)
	}
}

func TestAmendRetriesPrunedArtifactDeletion(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "CUSTOMER", true)
	policy := f.issuePolicy(t, q.QuoteNumber)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < versionRetention; i++ {
		key := fmt.Sprintf("policies/%s/versions/old-%02d.pdf", policy.PolicyNumber, i)
		f.store.versions[policy.ID] = append(f.store.versions[policy.ID], repository.Version{
			ID:          uuid.New(),
			PolicyID:    policy.ID,
			ArtifactKey: key,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		})
		f.artifacts.objects["policy-documents/"+key] = []byte("old")
	}
	f.artifacts.deleteFailures = prunedArtifactDeleteAttempts - 1

	email := "new@example.com"
	if _, _, err := f.svc.Amend(ctx, policy.ID, transport.AmendPolicyRequest{Email: &email}); err != nil {
		t.Fatalf("Amend: %v", err)
	}

	prunedKey := fmt.Sprintf("policies/%s/versions/old-00.pdf", policy.PolicyNumber)
	if len(f.artifacts.deleted) != 1 || f.artifacts.deleted[0] != prunedKey {
		t.Fatalf("deleted = %v, want [%s]", f.artifacts.deleted, prunedKey)
	}
	if _, ok := f.artifacts.objects["policy-documents/"+prunedKey]; ok {
		t.Fatal("pruned artifact still in the store after retries")
	}
}

func TestAmendRenderFailureAborts(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "CUSTOMER", true)
	policy := f.issuePolicy(t, q.QuoteNumber)
	f.renderer.err = errors.New("gotenberg unreachable")

	level := 7
	_, _, err := f.svc.Amend(context.Background(), policy.ID, transport.AmendPolicyRequest{CoverageLevel: &level})
	if !apperr.Is(err, apperr.KindArtifact) {
		t.Fatalf("err = %v, want artifact error", err)
	}
	if len(f.store.versions[policy.ID]) != 0 {
		t.Fatal("version recorded despite render failure")
	}
	graph := f.quotes.graphs[q.ID]
	if graph.Quote.CoverageLevel != 3 {
		t.Fatalf("amendment applied despite render failure: coverage = %d", graph.Quote.CoverageLevel)
	}
}

func TestListVersionsPresignsArtifacts(t *testing.T) {
	f := newFixture()
	q := f.seedQuote("STEP3", "CUSTOMER", true)
	policy := f.issuePolicy(t, q.QuoteNumber)

	level := 4
	if _, _, err := f.svc.Amend(context.Background(), policy.ID, transport.AmendPolicyRequest{CoverageLevel: &level}); err != nil {
		t.Fatalf("Amend: %v", err)
	}

	infos, err := f.svc.ListVersions(context.Background(), policy.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("versions = %d, want 1", len(infos))
	}
	if infos[0].DownloadURL == "" {
		t.Fatal("version has no download link")
	}
}
