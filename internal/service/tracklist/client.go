// Пакет tracklist предоставляет клиент внешнего справочника релизов,
// из которого каталог подтягивает треклисты по ExternalRef.
package tracklist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
)

const defaultTimeout = 5 * time.Second

// Client ходит в HTTP API справочника релизов.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент справочника. baseURL — корень API без завершающего слэша.
func NewClient(baseURL string, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.New().WithField("component", "tracklist-client")
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// releasePayload — ответ справочника на запрос релиза.
type releasePayload struct {
	Ref    string `json:"ref"`
	Tracks []struct {
		Position    int32  `json:"position"`
		Title       string `json:"title"`
		DurationSec int32  `json:"duration_sec"`
	} `json:"tracks"`
}

// Fetch загружает треклист релиза по внешней ссылке.
func (c *Client) Fetch(ctx context.Context, externalRef string) ([]domain.Track, error) {
	if externalRef == "" {
		return nil, domain.ErrExternalRefMissing
	}

	endpoint := c.baseURL + "/releases/" + url.PathEscape(externalRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build tracklist request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTracklistUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: release %q", domain.ErrTracklistUnavailable, externalRef)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", domain.ErrTracklistUnavailable, resp.StatusCode)
	}

	var payload releasePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrTracklistUnavailable, err)
	}

	tracks := make([]domain.Track, 0, len(payload.Tracks))
	for _, t := range payload.Tracks {
		tracks = append(tracks, domain.Track{
			Position:    t.Position,
			Title:       t.Title,
			DurationSec: t.DurationSec,
		})
	}

	c.logger.WithFields(log.Fields{
		"external_ref": externalRef,
		"tracks":       len(tracks),
	}).Debug("tracklist fetched")

	return tracks, nil
}

var _ domain.TracklistProvider = (*Client)(nil)
