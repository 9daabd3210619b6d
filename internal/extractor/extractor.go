package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codetrack-engine/internal/config"
	"github.com/codetrack-engine/internal/domain"
)

// Extractor fetches a raw, source-specific record for one handle on one
// platform. Implementations are pure functions of (handle, network state);
// they keep no per-call state.
type Extractor interface {
	Platform() domain.Platform
	Fetch(ctx context.Context, handle string) (*domain.RawRecord, error)
}

// Registry maps each supported platform to its extractor
type Registry map[domain.Platform]Extractor

// NewRegistry builds extractors for all supported platforms sharing one
// outbound client
func NewRegistry(cfg *config.ScraperConfig, logger *slog.Logger) Registry {
	client := NewClient(cfg, logger)
	return Registry{
		domain.PlatformLeetCode:      NewLeetCode(client, logger),
		domain.PlatformCodeChef:      NewCodeChef(client, logger),
		domain.PlatformGeeksforGeeks: NewGeeksforGeeks(client, logger),
		domain.PlatformCodeforces:    NewCodeforces(client, logger),
	}
}

// strategy is one prioritized way of reaching a platform (API, HTML page).
// run returns a record when the access path produced any usable signal;
// a record without a username counts as no signal.
type strategy struct {
	name string
	run  func(ctx context.Context, handle string) (*domain.RawRecord, error)
}

// runStrategies tries each access strategy in order. It advances only when
// the current strategy yields no usable record: an HTTP/transport error, a
// not-found marker, or a record missing every identifying field. The first
// record with at least one identifying field wins.
func runStrategies(ctx context.Context, platform domain.Platform, handle string, logger *slog.Logger, strategies []strategy) (*domain.RawRecord, error) {
	var lastErr error
	notFound := false

	for _, s := range strategies {
		rec, err := s.run(ctx, handle)
		if err != nil {
			if errors.Is(err, domain.ErrHandleNotFound) {
				notFound = true
			}
			lastErr = err
			logger.Warn("extraction strategy failed",
				"platform", platform,
				"strategy", s.name,
				"handle", handle,
				"error", err,
			)
			continue
		}
		if rec == nil || rec.Username == "" {
			lastErr = fmt.Errorf("%w: no identifying field extracted", domain.ErrUnavailable)
			logger.Warn("extraction strategy yielded no identifying field",
				"platform", platform,
				"strategy", s.name,
				"handle", handle,
			)
			continue
		}
		rec.Platform = platform
		if rec.ProfileURL == "" {
			rec.ProfileURL = platform.ProfileURL(handle)
		}
		return rec, nil
	}

	if notFound {
		return nil, domain.WrapPlatform(platform, domain.ErrHandleNotFound)
	}
	if lastErr == nil {
		lastErr = domain.ErrUnavailable
	}
	if !errors.Is(lastErr, domain.ErrUnavailable) {
		lastErr = fmt.Errorf("%w: %v", domain.ErrUnavailable, lastErr)
	}
	return nil, domain.WrapPlatform(platform, lastErr)
}
