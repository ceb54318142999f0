package breadcrumb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	breadcrumb "github.com/hanpama/crumbgraph/internal/breadcrumb"
	content "github.com/hanpama/crumbgraph/internal/content"
	eventbus "github.com/hanpama/crumbgraph/internal/eventbus"
	events "github.com/hanpama/crumbgraph/internal/events"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder installs a fresh global bus for the duration of the test.
type recorder struct {
	finishes []events.BreadcrumbFinish
	missing  []events.NavigationMissing
}

func record(t *testing.T) *recorder {
	t.Helper()
	rec := &recorder{}
	bus := eventbus.New()
	eventbus.SubscribeTo(bus, func(_ context.Context, e events.BreadcrumbFinish) {
		rec.finishes = append(rec.finishes, e)
	})
	eventbus.SubscribeTo(bus, func(_ context.Context, e events.NavigationMissing) {
		rec.missing = append(rec.missing, e)
	})
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })
	return rec
}

func TestBreadcrumbsFromNavigation(t *testing.T) {
	s := newSite(t)
	rec := record(t)
	r := breadcrumb.NewResolver(s.store)

	got, err := r.Breadcrumbs(context.Background(), s.entries["a"], breadcrumb.Options{NavigationStructure: "main"})
	require.NoError(t, err)

	// The homepage is prepended even though the tree already starts with it.
	want := []string{"~home", "home", "section", "link:External", "blog", "a"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Fatalf("trail mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(breadcrumb.Record{
		Title:     "External",
		URL:       "https://example.com",
		Permalink: "https://example.com",
	}, got[3]); diff != "" {
		t.Fatalf("link record mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, rec.finishes, 1)
	require.Equal(t, breadcrumb.StrategyNavigation, rec.finishes[0].Strategy)
	require.False(t, rec.finishes[0].Fallback)
	require.Equal(t, 6, rec.finishes[0].Count)
	require.Empty(t, rec.missing)
}

func TestBreadcrumbsWithoutNavigation(t *testing.T) {
	s := newSite(t)
	rec := record(t)
	r := breadcrumb.NewResolver(s.store)

	got, err := r.Breadcrumbs(context.Background(), s.entries["current"], breadcrumb.Options{})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"home", "blog", "a", "b", "current"}, ids(got)); diff != "" {
		t.Fatalf("trail mismatch (-want +got):\n%s", diff)
	}

	got, err = r.Breadcrumbs(context.Background(), s.entries["current"], breadcrumb.Options{FullMountPath: true})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"home", "section", "blog", "a", "b", "current"}, ids(got)); diff != "" {
		t.Fatalf("full trail mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, rec.finishes, 2)
	for _, f := range rec.finishes {
		require.Equal(t, breadcrumb.StrategyCollection, f.Strategy)
		require.False(t, f.Fallback)
	}
}

func TestBreadcrumbsUnknownNavigationFallsBack(t *testing.T) {
	s := newSite(t)
	rec := record(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	r := breadcrumb.NewResolver(s.store, breadcrumb.WithLogger(zap.New(core)))
	ctx := context.Background()

	want, err := r.Breadcrumbs(ctx, s.entries["current"], breadcrumb.Options{})
	require.NoError(t, err)
	got, err := r.Breadcrumbs(ctx, s.entries["current"], breadcrumb.Options{NavigationStructure: "nope"})
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fallback trail mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, zapcore.ErrorLevel, entry.Level)
	require.Equal(t, "nope", entry.ContextMap()["navigation"])
	require.Equal(t, "current", entry.ContextMap()["entry"])

	if diff := cmp.Diff([]events.NavigationMissing{{Handle: "nope", Locale: "en"}}, rec.missing); diff != "" {
		t.Fatalf("missing events mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, rec.finishes, 2)
	require.Equal(t, breadcrumb.StrategyCollection, rec.finishes[1].Strategy)
	require.True(t, rec.finishes[1].Fallback)
}

func TestBreadcrumbsUnmatchedNavigationFallsBack(t *testing.T) {
	s := newSite(t)
	rec := record(t)
	store := &countingStore{Store: s.store}
	r := breadcrumb.NewResolver(store)

	got, err := r.Breadcrumbs(context.Background(), s.entries["current"], breadcrumb.Options{NavigationStructure: "main"})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"home", "blog", "a", "b", "current"}, ids(got)); diff != "" {
		t.Fatalf("trail mismatch (-want +got):\n%s", diff)
	}
	require.Zero(t, store.byURL, "homepage must not be looked up for an empty branch")
	require.Len(t, rec.finishes, 1)
	require.True(t, rec.finishes[0].Fallback)
	require.Empty(t, rec.missing)
}

func TestBreadcrumbsDanglingReference(t *testing.T) {
	s := newSite(t)
	rec := record(t)
	r := breadcrumb.NewResolver(s.store)

	got, err := r.Breadcrumbs(context.Background(), s.entries["a"], breadcrumb.Options{NavigationStructure: "broken"})
	require.Error(t, err)
	require.Nil(t, got)
	require.True(t, errors.Is(err, breadcrumb.ErrDanglingReference))
	require.True(t, errors.Is(err, content.ErrEntryNotFound))
	require.Contains(t, err.Error(), `"ghost"`)

	require.Len(t, rec.finishes, 1)
	require.Equal(t, breadcrumb.StrategyNavigation, rec.finishes[0].Strategy)
	require.Zero(t, rec.finishes[0].Count)
	require.ErrorIs(t, rec.finishes[0].Err, breadcrumb.ErrDanglingReference)
}

func TestBreadcrumbsLocaleWithoutHomepage(t *testing.T) {
	s := newSite(t)
	r := breadcrumb.NewResolver(s.store)
	ctx := context.Background()

	got, err := r.Breadcrumbs(ctx, s.entries["a-de"], breadcrumb.Options{NavigationStructure: "main"})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"a-de"}, ids(got)); diff != "" {
		t.Fatalf("navigation trail mismatch (-want +got):\n%s", diff)
	}

	got, err = r.Breadcrumbs(ctx, s.entries["a-de"], breadcrumb.Options{})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"a-de"}, ids(got)); diff != "" {
		t.Fatalf("collection trail mismatch (-want +got):\n%s", diff)
	}
}

func TestBreadcrumbsNilEntry(t *testing.T) {
	r := breadcrumb.NewResolver(content.NewMemoryStore())
	got, err := r.Breadcrumbs(context.Background(), nil, breadcrumb.Options{NavigationStructure: "main"})
	require.NoError(t, err)
	require.Nil(t, got)
}

type failingStore struct {
	content.Store
	err error
}

func (f failingStore) Structure(context.Context, string) (*content.Structure, error) {
	return nil, f.err
}

func TestBreadcrumbsStoreFailurePropagates(t *testing.T) {
	s := newSite(t)
	boom := errors.New("backend unavailable")
	r := breadcrumb.NewResolver(failingStore{Store: s.store, err: boom})

	got, err := r.Breadcrumbs(context.Background(), s.entries["a"], breadcrumb.Options{NavigationStructure: "main"})
	require.ErrorIs(t, err, boom)
	require.Nil(t, got)
}

func TestBreadcrumbsHomepageRecordHasNoID(t *testing.T) {
	s := newSite(t)
	r := breadcrumb.NewResolver(s.store)

	got, err := r.Breadcrumbs(context.Background(), s.entries["b"], breadcrumb.Options{NavigationStructure: "main"})
	require.NoError(t, err)
	require.NotEmpty(t, got)

	home := s.entries["home"]
	want := breadcrumb.Record{
		Title:     home.Title,
		Slug:      home.Slug,
		URL:       home.URL,
		Permalink: home.Permalink,
		Blueprint: home.Blueprint,
	}
	first := got[0]
	require.Same(t, home, first.Entry)
	first.Entry = nil
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("homepage record mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "home", got[1].ID)
}
