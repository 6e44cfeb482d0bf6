package tracklist

import (
	"context"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
)

// MockProvider — конфигурируемая заглушка TracklistProvider для тестов.
type MockProvider struct {
	Tracks   []domain.Track
	FetchErr error

	FetchCalls int
	LastRef    string
}

// NewMockProvider возвращает mock с успешным сценарием по умолчанию.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Fetch возвращает заранее настроенные треки и считает вызовы.
func (m *MockProvider) Fetch(ctx context.Context, externalRef string) ([]domain.Track, error) {
	m.FetchCalls++
	m.LastRef = externalRef
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Tracks, nil
}

var _ domain.TracklistProvider = (*MockProvider)(nil)
