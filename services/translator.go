package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"javea-listings/models"
	"javea-listings/utils"
)

// TranslationProvider translates one piece of text between two languages.
type TranslationProvider interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// TranslationConfig controls which languages are produced and how requests
// are paced.
type TranslationConfig struct {
	Source      string
	Targets     []string
	MaxChunk    int
	MinInterval time.Duration
}

// DefaultTranslationConfig translates English listings into Spanish and Russian.
func DefaultTranslationConfig() TranslationConfig {
	return TranslationConfig{
		Source:      "en",
		Targets:     []string{"es", "ru"},
		MaxChunk:    4500,
		MinInterval: 300 * time.Millisecond,
	}
}

// TranslationService fills in the Translations of accepted listings.
type TranslationService struct {
	provider TranslationProvider
	cfg      TranslationConfig
	limiter  *rate.Limiter
	logger   *utils.Logger
}

// NewTranslationService creates a TranslationService.
func NewTranslationService(provider TranslationProvider, cfg TranslationConfig, logger *utils.Logger) *TranslationService {
	if cfg.MaxChunk <= 0 {
		cfg.MaxChunk = 4500
	}
	return &TranslationService{
		provider: provider,
		cfg:      cfg,
		limiter:  utils.NewLimiter(cfg.MinInterval),
		logger:   logger,
	}
}

// TranslateListings translates title and description of every listing into
// each target language. A failed translation keeps the original text. Only
// context cancellation is returned as an error.
func (s *TranslationService) TranslateListings(ctx context.Context, listings []*models.Listing) error {
	for i, l := range listings {
		if l == nil || l.Candidate == nil {
			continue
		}
		s.logger.Info("[translator] [%d/%d] Translating %s", i+1, len(listings), l.Candidate.Ref())

		if l.Translations.Title == nil {
			l.Translations.Title = make(map[string]string)
		}
		if l.Translations.Description == nil {
			l.Translations.Description = make(map[string]string)
		}

		for _, target := range s.cfg.Targets {
			title, err := s.Translate(ctx, l.Candidate.Title, target)
			if err != nil {
				return err
			}
			desc, err := s.Translate(ctx, l.Candidate.Description, target)
			if err != nil {
				return err
			}
			l.Translations.Title[target] = title
			l.Translations.Description[target] = desc
		}
	}
	return nil
}

// Translate converts text into target, chunk by chunk. Chunks that fail are
// kept in the source language.
func (s *TranslationService) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" || target == s.cfg.Source {
		return text, nil
	}

	chunks := chunkText(text, s.cfg.MaxChunk)
	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		translated, err := s.provider.Translate(ctx, chunk, s.cfg.Source, target)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			s.logger.Warn("[translator] %s→%s failed, keeping original: %v", s.cfg.Source, target, err)
			out[i] = chunk
			continue
		}
		out[i] = translated
	}
	return strings.Join(out, "\n\n"), nil
}

// chunkText splits text on blank lines into chunks of at most max bytes.
// Paragraphs longer than max are split on rune boundaries.
func chunkText(text string, max int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for len(para) > max {
			flush()
			cut := max
			for cut > 0 && !utf8.RuneStart(para[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
			chunks = append(chunks, para[:cut])
			para = para[cut:]
		}
		if current.Len() > 0 && current.Len()+2+len(para) > max {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}
