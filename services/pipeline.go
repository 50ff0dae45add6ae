package services

import (
	"context"
	"fmt"

	"javea-listings/models"
	"javea-listings/utils"
)

// Resolver attaches coordinates to a listing's title and location text.
type Resolver interface {
	Resolve(ctx context.Context, title, location string) (*models.Coordinates, error)
}

// Pipeline enriches a batch of candidates with location data and splits
// them into accepted listings and duplicates.
type Pipeline struct {
	extractor  *LocationExtractor
	resolver   Resolver
	classifier *Classifier
	logger     *utils.Logger
}

// NewPipeline creates a Pipeline. A nil resolver skips geocoding.
func NewPipeline(extractor *LocationExtractor, resolver Resolver, classifier *Classifier, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		resolver:   resolver,
		classifier: classifier,
		logger:     logger,
	}
}

// Run processes candidates sequentially in input order. A candidate whose
// enrichment fails is kept unenriched and still classified. Cancellation
// discards the partial result.
func (p *Pipeline) Run(ctx context.Context, candidates []*models.ListingCandidate) (*models.RunResult, error) {
	result := &models.RunResult{
		Accepted:   make([]*models.Listing, 0, len(candidates)),
		Duplicates: []models.DuplicateMatch{},
	}
	report := &result.Report

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("[pipeline] Cancelled after %d/%d candidates", i, len(candidates))
			return nil, err
		}
		report.Processed++

		if c == nil {
			p.logger.Error("[pipeline] Skipping nil candidate at position %d", i)
			report.Failed++
			continue
		}

		listing := models.NewListing(c, p.extractor.DefaultMunicipality())
		if err := p.enrich(ctx, listing); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.logger.Error("[pipeline] Failed to enrich %s: %v", c.Ref(), err)
			listing = models.NewListing(c, p.extractor.DefaultMunicipality())
			listing.Failed = true
			listing.Error = err.Error()
			report.Failed++
		}
		if listing.Location.Coordinates != nil {
			report.Geocoded++
		}

		if existing, tier := p.classifier.FindDuplicate(listing, result.Accepted); existing != nil {
			result.Duplicates = append(result.Duplicates, models.DuplicateMatch{
				Candidate: listing,
				Existing:  existing,
				Tier:      string(tier),
			})
			report.Duplicates++
			p.logger.Info("[pipeline] Duplicate: %s matches %s (%s)", c.Ref(), existing.Candidate.Ref(), tier)
			continue
		}

		result.Accepted = append(result.Accepted, listing)
		report.Accepted++
	}

	p.logger.Info("[pipeline] Processed %d: %d unique, %d duplicates, %d failed, %d geocoded",
		report.Processed, report.Accepted, report.Duplicates, report.Failed, report.Geocoded)
	return result, nil
}

// enrich attaches location and coordinates. Panics from collaborators are
// turned into errors.
func (p *Pipeline) enrich(ctx context.Context, listing *models.Listing) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	c := listing.Candidate
	if err := c.Validate(); err != nil {
		return err
	}

	listing.Location = p.extractor.ExtractListing(c.Title, c.LocationText)

	if p.resolver == nil {
		return nil
	}
	coords, err := p.resolver.Resolve(ctx, c.Title, c.LocationText)
	if err != nil {
		return fmt.Errorf("geocode: %w", err)
	}
	if coords != nil && coords.Valid() {
		listing.Location.Coordinates = coords
	}
	return nil
}
