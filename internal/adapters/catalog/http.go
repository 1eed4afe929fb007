package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

type searchResponse struct {
	Tracks []domain.Track `json:"tracks"`
}

// Remote queries an HTTP catalog: GET <base>/tracks?q=<query> answering
// {"tracks": [...]}.
type Remote struct {
	client *resty.Client
}

func NewRemote(baseURL string, timeout time.Duration) *Remote {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")
	return &Remote{client: client}
}

func (r *Remote) Search(ctx context.Context, query string) ([]domain.Track, error) {
	var out searchResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetResult(&out).
		Get("/tracks")
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog search: status %d", resp.StatusCode())
	}
	log.Debug().Str("module", "adapters.catalog").Str("query", query).Int("results", len(out.Tracks)).Msg("search")
	return out.Tracks, nil
}

var _ core.Catalog = (*Remote)(nil)
