package detector

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
)

// Promoting fetches over a primary transport and re-fetches pages the
// Heuristic flags through a headless transport. A failed render falls back to
// the primary result.
type Promoting struct {
	primary  crawler.PageFetcher
	headless crawler.PageFetcher
	detector *Heuristic
	logger   *zap.Logger
}

// NewPromoting wires the two transports. logger may be nil.
func NewPromoting(primary, headless crawler.PageFetcher, h *Heuristic, logger *zap.Logger) *Promoting {
	if h == nil {
		h = NewHeuristic(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{primary: primary, headless: headless, detector: h, logger: logger}
}

// FetchPage implements crawler.PageFetcher.
func (p *Promoting) FetchPage(ctx context.Context, url string) (crawler.Page, error) {
	page, err := p.primary.FetchPage(ctx, url)
	if err != nil || !p.detector.ShouldPromote(page) {
		return page, err
	}

	rendered, rerr := p.headless.FetchPage(ctx, url)
	if rerr != nil {
		p.logger.Debug("headless render failed, keeping plain response", zap.String("url", url), zap.Error(rerr))
		return page, nil
	}
	p.logger.Debug("page promoted to headless render", zap.String("url", url))
	return rendered, nil
}
