package detector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
)

func TestHeuristic_ShouldPromote(t *testing.T) {
	t.Parallel()

	longText := "<html><body><p>" + strings.Repeat("plenty of readable text ", 200) + `</p><div id="root"></div></body></html>`
	tests := []struct {
		name string
		page crawler.Page
		want bool
	}{
		{name: "empty body", page: crawler.Page{StatusCode: 200, Body: []byte("  ")}, want: true},
		{name: "spa marker", page: crawler.Page{StatusCode: 200, Body: []byte(`<html><body><div id="__next"></div></body></html>`)}, want: true},
		{
			name: "script heavy",
			page: crawler.Page{StatusCode: 200, Body: []byte(`<html><body><p>hi</p><script>` + strings.Repeat("var a=1;", 50) + `</script></body></html>`)},
			want: true,
		},
		{name: "enough text despite marker", page: crawler.Page{StatusCode: 200, Body: []byte(longText)}, want: false},
		{name: "plain short page", page: crawler.Page{StatusCode: 200, Body: []byte(`<html><body><p>just a short note</p></body></html>`)}, want: false},
		{name: "error status", page: crawler.Page{StatusCode: 404, Body: nil}, want: false},
		{name: "already rendered", page: crawler.Page{StatusCode: 200, Headless: true}, want: false},
	}
	h := NewHeuristic(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, h.ShouldPromote(tt.page))
		})
	}
}

func TestScriptShare(t *testing.T) {
	t.Parallel()

	require.Zero(t, scriptShare(nil))
	require.Zero(t, scriptShare([]byte("<p>no scripts</p>")))
	require.Equal(t, 100, scriptShare([]byte("<script>x</script>")))
	require.Equal(t, 100, scriptShare([]byte("<SCRIPT>never closed")))
}

type stubPages struct {
	page  crawler.Page
	err   error
	calls int
}

func (s *stubPages) FetchPage(_ context.Context, _ string) (crawler.Page, error) {
	s.calls++
	return s.page, s.err
}

func TestPromoting_FetchPage(t *testing.T) {
	t.Parallel()

	shell := crawler.Page{StatusCode: 200, Body: []byte(`<div id="app"></div>`)}
	rendered := crawler.Page{StatusCode: 200, Body: []byte("<p>rendered</p>"), Headless: true}

	t.Run("promotes shell", func(t *testing.T) {
		t.Parallel()
		primary := &stubPages{page: shell}
		headless := &stubPages{page: rendered}
		got, err := NewPromoting(primary, headless, nil, nil).FetchPage(context.Background(), "https://a.example")
		require.NoError(t, err)
		require.True(t, got.Headless)
		require.Equal(t, 1, headless.calls)
	})

	t.Run("keeps plain page on render failure", func(t *testing.T) {
		t.Parallel()
		headless := &stubPages{err: errors.New("chrome missing")}
		got, err := NewPromoting(&stubPages{page: shell}, headless, nil, nil).FetchPage(context.Background(), "https://a.example")
		require.NoError(t, err)
		require.Equal(t, shell, got)
	})

	t.Run("passes primary errors through", func(t *testing.T) {
		t.Parallel()
		headless := &stubPages{page: rendered}
		_, err := NewPromoting(&stubPages{err: errors.New("refused")}, headless, nil, nil).FetchPage(context.Background(), "https://a.example")
		require.EqualError(t, err, "refused")
		require.Zero(t, headless.calls)
	})
}
