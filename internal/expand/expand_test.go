package expand

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
)

type stubResolver struct {
	urls  []string
	limit int
}

func (s *stubResolver) Resolve(_ context.Context, _ string, limit int) []string {
	s.limit = limit
	return s.urls
}

type stubFetcher map[string]string

func (s stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	text, ok := s[url]
	if !ok {
		return "", errors.New("unreachable")
	}
	return text, nil
}

func TestKeywordsRanksByTFIDF(t *testing.T) {
	t.Parallel()

	docs := []string{
		"Quantum computing: the quantum qubits abc123",
		"Quantum entanglement",
	}
	got := Keywords(docs, 8)
	require.Equal(t, []string{"quantum", "computing", "entanglement", "qubits"}, got)
}

func TestKeywordsKeepsNonASCIIWordsWhole(t *testing.T) {
	t.Parallel()

	got := Keywords([]string{"Die Straße führt über München. Straße Straße München"}, 4)
	require.Equal(t, []string{"straße", "münchen", "die", "führt"}, got)

	got = Keywords([]string{"量子 計算 量子", "Квантовые вычисления"}, 8)
	require.Contains(t, got, "量子")
	require.Contains(t, got, "квантовые")
}

func TestKeywordsTruncatesAndHandlesEmpty(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"quantum"}, Keywords([]string{"quantum quantum computing"}, 1))
	require.Empty(t, Keywords(nil, 8))
	require.Empty(t, Keywords([]string{"the and of a"}, 8))
}

func TestExpandDisabled(t *testing.T) {
	t.Parallel()

	res := &stubResolver{urls: []string{"https://a.example"}}
	e := New(Config{}, res, stubFetcher{"https://a.example": "quantum"}, crawler.NewState(), nil)
	require.Empty(t, e.Expand(context.Background(), "quantum"))
	require.Zero(t, res.limit)
}

func TestExpandIgnoresFailedFetches(t *testing.T) {
	t.Parallel()

	res := &stubResolver{urls: []string{"https://a.example", "https://b.example", "https://c.example"}}
	fetch := stubFetcher{"https://b.example": "superconducting qubits qubits"}
	e := New(Config{Enabled: true}, res, fetch, crawler.NewState(), nil)

	got := e.Expand(context.Background(), "quantum computing")
	require.Equal(t, []string{"qubits", "superconducting"}, got)
	require.Equal(t, DefaultPages, res.limit)
}

func TestExpandNoTextOrCancelled(t *testing.T) {
	t.Parallel()

	res := &stubResolver{urls: []string{"https://a.example"}}
	e := New(Config{Enabled: true}, res, stubFetcher{}, crawler.NewState(), nil)
	require.Empty(t, e.Expand(context.Background(), "topic"))

	state := crawler.NewState()
	state.Cancel()
	e = New(Config{Enabled: true}, res, stubFetcher{"https://a.example": "words here"}, state, nil)
	require.Empty(t, e.Expand(context.Background(), "topic"))
}
