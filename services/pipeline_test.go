package services

import (
	"context"
	"errors"
	"testing"

	"javea-listings/models"
	"javea-listings/utils"
)

// fakeResolver answers from a map keyed by location text.
type fakeResolver struct {
	coords map[string]*models.Coordinates
	panics map[string]bool
	calls  int
	onCall func()
}

func (f *fakeResolver) Resolve(ctx context.Context, _ string, location string) (*models.Coordinates, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.panics[location] {
		panic("malformed record")
	}
	return f.coords[location], nil
}

func newTestPipeline(resolver Resolver) *Pipeline {
	logger := utils.NewLogger()
	return NewPipeline(NewLocationExtractor("Javea"), resolver, NewClassifier(DefaultClassifierConfig(), logger), logger)
}

func candidate(ref, title, location string, price int64) *models.ListingCandidate {
	return &models.ListingCandidate{
		SourceReference: ref,
		Title:           title,
		LocationText:    location,
		Price:           price,
		Type:            models.TypeHouse,
	}
}

func TestPipelineReferenceDuplicate(t *testing.T) {
	p := newTestPipeline(&fakeResolver{})
	res, err := p.Run(context.Background(), []*models.ListingCandidate{
		candidate("REF-100", "Villa with pool", "Javea, Arenal", 450000),
		candidate("REF-100", "Villa with pool (updated)", "Javea, Arenal", 440000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Report.Accepted != 1 || res.Report.Duplicates != 1 {
		t.Errorf("report: got %+v, want 1 accepted and 1 duplicate", res.Report)
	}
	if len(res.Duplicates) != 1 || res.Duplicates[0].Tier != string(TierReference) {
		t.Fatalf("duplicates: got %+v", res.Duplicates)
	}
	if res.Duplicates[0].Existing != res.Accepted[0] {
		t.Error("duplicate should point at the accepted listing")
	}
	if res.Accepted[0].Candidate.Title != "Villa with pool" {
		t.Errorf("first candidate should be kept, got %q", res.Accepted[0].Candidate.Title)
	}
}

func TestPipelineGeospatialScenario(t *testing.T) {
	resolver := &fakeResolver{coords: map[string]*models.Coordinates{
		"Javea, Cansalades": {Lat: 38.7700, Lon: 0.1500},
		"Javea, Granadella": {Lat: 38.7700 + threeMetersLat, Lon: 0.1500},
	}}

	run := func(secondPrice int64) *models.RunResult {
		res, err := newTestPipeline(resolver).Run(context.Background(), []*models.ListingCandidate{
			candidate("A-1", "Villa with sea views", "Javea, Cansalades", 320000),
			candidate("B-2", "Detached house near the Montgo", "Javea, Granadella", secondPrice),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return res
	}

	if res := run(320000); res.Report.Duplicates != 1 || res.Report.Geocoded != 2 {
		t.Errorf("equal price: got %+v, want 1 duplicate and 2 geocoded", res.Report)
	}
	if res := run(320001); res.Report.Duplicates != 0 || res.Report.Accepted != 2 {
		t.Errorf("price off by one: got %+v, want 2 accepted", res.Report)
	}
}

func TestPipelineAttachesLocation(t *testing.T) {
	res, err := newTestPipeline(nil).Run(context.Background(), []*models.ListingCandidate{
		candidate("X-1", "Townhouse", "Xàbia, Cansalades", 250000),
		candidate("X-2", "Apartment", "Javea, Cansalades", 180000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Accepted) != 2 {
		t.Fatalf("accepted: got %d, want 2", len(res.Accepted))
	}
	for _, l := range res.Accepted {
		if l.Location.Municipality != "Javea" || l.Location.AreaSlug != "cansalades" {
			t.Errorf("%s: got %+v", l.Candidate.Ref(), l.Location)
		}
	}
}

func TestPipelineRetainsFailedCandidates(t *testing.T) {
	resolver := &fakeResolver{panics: map[string]bool{"Broken": true}}
	res, err := newTestPipeline(resolver).Run(context.Background(), []*models.ListingCandidate{
		candidate("OK-1", "Villa", "Javea, Arenal", 300000),
		candidate("BAD-1", "Villa in Granadella", "Broken", 200000),
		candidate("NEG-1", "Plot", "Javea", -5),
		nil,
		candidate("OK-2", "Finca", "Javea, Montgo", 900000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Report.Processed != 5 {
		t.Errorf("processed: got %d, want 5", res.Report.Processed)
	}
	if res.Report.Failed != 3 {
		t.Errorf("failed: got %d, want 3", res.Report.Failed)
	}
	if res.Report.Accepted != 4 {
		t.Fatalf("accepted: got %d, want 4", res.Report.Accepted)
	}

	bad := res.Accepted[1]
	if !bad.Failed || bad.Error == "" {
		t.Errorf("failed candidate should be flagged: %+v", bad)
	}
	if bad.Location.AreaSlug != "" || bad.Location.Municipality != "Javea" {
		t.Errorf("failed candidate should stay unenriched: %+v", bad.Location)
	}
	if res.Accepted[3].Candidate.SourceReference != "OK-2" {
		t.Errorf("batch should continue after failures")
	}
}

func TestPipelineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	resolver := &fakeResolver{onCall: cancel}

	res, err := newTestPipeline(resolver).Run(ctx, []*models.ListingCandidate{
		candidate("A", "Villa", "Javea", 1),
		candidate("B", "Villa", "Javea", 2),
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if res != nil {
		t.Errorf("partial result should be discarded, got %+v", res)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver calls: got %d, want 1", resolver.calls)
	}
}

func TestPipelineEmptyBatch(t *testing.T) {
	res, err := newTestPipeline(nil).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Report != (models.RunReport{}) || len(res.Accepted) != 0 {
		t.Errorf("empty batch: got %+v", res)
	}
}
