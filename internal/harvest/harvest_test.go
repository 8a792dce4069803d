package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quirkauto/inventory-crawler/internal/robots"
)

type stubClient struct {
	pages map[string]string
	calls []string
}

func (s *stubClient) Fetch(_ context.Context, rawURL string) (string, error) {
	s.calls = append(s.calls, rawURL)
	body, ok := s.pages[rawURL]
	if !ok {
		return "", errors.New("fetch failed: 500")
	}
	return body, nil
}

type stubPolicy struct {
	blocked map[string]bool
}

func (s *stubPolicy) Allowed(_ context.Context, rawURL string) bool {
	return !s.blocked[rawURL]
}

type stubRenderer struct {
	body  string
	calls int
}

func (s *stubRenderer) Render(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.body, nil
}

type stubDetector struct{ needsJS bool }

func (s *stubDetector) NeedsJS(_ []byte) bool { return s.needsJS }

func newTestHarvester(t *testing.T, client Client, guard robots.Policy, renderer Renderer, detector Detector) *Harvester {
	t.Helper()
	h, err := New(Config{
		BaseURL:       "https://dealer.example.com",
		VDPPathMarker: "/vehicle",
		MaxPages:      20,
	}, client, guard, renderer, detector, zap.NewNop())
	require.NoError(t, err)
	return h
}

func TestHarvestCombinesBothStrategies(t *testing.T) {
	client := &stubClient{pages: map[string]string{
		"https://dealer.example.com/new-inventory/": `<html><body>
			<script type="application/json">
				{"cards":[{"link":"https://dealer.example.com/vehicle/2026-chevrolet-equinox-abc123"}]}
			</script>
			<a href="/vehicle/2026-chevrolet-trax-def456">2026 Chevrolet Trax</a>
			<a href="/about-us">About Us</a>
		</body></html>`,
	}}
	h := newTestHarvester(t, client, &stubPolicy{}, nil, nil)

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.NoError(t, err)
	require.Equal(t, []string{
		"https://dealer.example.com/vehicle/2026-chevrolet-equinox-abc123",
		"https://dealer.example.com/vehicle/2026-chevrolet-trax-def456",
	}, got)
}

func TestHarvestBlobURLKeepsQueryAmpersand(t *testing.T) {
	// URLs inside JSON blobs often carry query strings; the & separator
	// must survive the normalize step or the URL is unfetchable.
	client := &stubClient{pages: map[string]string{
		"https://dealer.example.com/new-inventory/": `<html><body>
			<script type="application/json">
				{"card":{"link":"https://dealer.example.com/vehicle/2026-trax?dealer=12&stock=T1"}}
			</script>
		</body></html>`,
	}}
	h := newTestHarvester(t, client, &stubPolicy{}, nil, nil)

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.NoError(t, err)
	require.Equal(t, []string{
		"https://dealer.example.com/vehicle/2026-trax?dealer=12&stock=T1",
	}, got)
}

func TestHarvestDeduplicatesAcrossStrategiesAndPages(t *testing.T) {
	page1 := `<html><body>
		<script type="application/json">{"link":"https://dealer.example.com/vehicle/one"}</script>
		<a href="/vehicle/one">Same car</a>
		<a rel="next" href="/new-inventory/?page=2">Next</a>
	</body></html>`
	page2 := `<html><body>
		<a href="/vehicle/one">Still the same car</a>
		<a href="/vehicle/two">Another car</a>
	</body></html>`
	client := &stubClient{pages: map[string]string{
		"https://dealer.example.com/new-inventory/":        page1,
		"https://dealer.example.com/new-inventory/?page=2": page2,
	}}
	h := newTestHarvester(t, client, &stubPolicy{}, nil, nil)

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.NoError(t, err)
	require.Equal(t, []string{
		"https://dealer.example.com/vehicle/one",
		"https://dealer.example.com/vehicle/two",
	}, got)
	require.Len(t, client.calls, 2)
}

func TestHarvestStopsOnPaginationCycle(t *testing.T) {
	// Page 2 links back to page 1. The walk must stop after page 2
	// instead of looping until the page cap.
	page1 := `<html><body>
		<a href="/vehicle/a">A</a>
		<a rel="next" href="/new-inventory/?page=2">Next</a>
	</body></html>`
	page2 := `<html><body>
		<a href="/vehicle/b">B</a>
		<a rel="next" href="/new-inventory/">Next</a>
	</body></html>`
	client := &stubClient{pages: map[string]string{
		"https://dealer.example.com/new-inventory/":        page1,
		"https://dealer.example.com/new-inventory/?page=2": page2,
	}}
	h := newTestHarvester(t, client, &stubPolicy{}, nil, nil)

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.NoError(t, err)
	require.Equal(t, []string{
		"https://dealer.example.com/vehicle/a",
		"https://dealer.example.com/vehicle/b",
	}, got)
	require.Len(t, client.calls, 2)
}

func TestHarvestHonorsPageCap(t *testing.T) {
	// Every page links to a fresh next page; only the first three may be
	// fetched.
	pages := map[string]string{
		"https://dealer.example.com/new-inventory/":        `<a href="/vehicle/p1">x</a><a rel="next" href="/new-inventory/?page=2">Next</a>`,
		"https://dealer.example.com/new-inventory/?page=2": `<a href="/vehicle/p2">x</a><a rel="next" href="/new-inventory/?page=3">Next</a>`,
		"https://dealer.example.com/new-inventory/?page=3": `<a href="/vehicle/p3">x</a><a rel="next" href="/new-inventory/?page=4">Next</a>`,
		"https://dealer.example.com/new-inventory/?page=4": `<a href="/vehicle/p4">x</a>`,
	}
	client := &stubClient{pages: pages}
	h, err := New(Config{
		BaseURL:  "https://dealer.example.com",
		MaxPages: 3,
	}, client, &stubPolicy{}, nil, nil, zap.NewNop())
	require.NoError(t, err)

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.NoError(t, err)
	require.Equal(t, []string{
		"https://dealer.example.com/vehicle/p1",
		"https://dealer.example.com/vehicle/p2",
		"https://dealer.example.com/vehicle/p3",
	}, got)
	require.Len(t, client.calls, 3)
}

func TestHarvestNextLinkByAnchorText(t *testing.T) {
	page1 := `<html><body>
		<a href="/vehicle/a">A</a>
		<a href="/new-inventory/?page=2">Next &raquo;</a>
	</body></html>`
	page2 := `<a href="/vehicle/b">B</a>`
	client := &stubClient{pages: map[string]string{
		"https://dealer.example.com/new-inventory/":        page1,
		"https://dealer.example.com/new-inventory/?page=2": page2,
	}}
	h := newTestHarvester(t, client, &stubPolicy{}, nil, nil)

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestHarvestReturnsPartialOnFetchFailure(t *testing.T) {
	page1 := `<html><body>
		<a href="/vehicle/a">A</a>
		<a rel="next" href="/new-inventory/?page=2">Next</a>
	</body></html>`
	client := &stubClient{pages: map[string]string{
		"https://dealer.example.com/new-inventory/": page1,
		// page 2 deliberately missing
	}}
	h := newTestHarvester(t, client, &stubPolicy{}, nil, nil)

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.NoError(t, err)
	require.Equal(t, []string{"https://dealer.example.com/vehicle/a"}, got)
}

func TestHarvestRobotsViolationIsFatal(t *testing.T) {
	client := &stubClient{pages: map[string]string{}}
	guard := &stubPolicy{blocked: map[string]bool{
		"https://dealer.example.com/new-inventory/": true,
	}}
	h := newTestHarvester(t, client, guard, nil, nil)

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.ErrorIs(t, err, robots.ErrDisallowed)
	require.Empty(t, got)
	require.Empty(t, client.calls)
}

func TestHarvestEscalatesToHeadlessWhenPageIsEmptyShell(t *testing.T) {
	shell := `<html><body><div id="app"></div></body></html>`
	rendered := `<html><body>
		<a href="/vehicle/js-only-car">rendered</a>
	</body></html>`
	client := &stubClient{pages: map[string]string{
		"https://dealer.example.com/new-inventory/": shell,
	}}
	renderer := &stubRenderer{body: rendered}
	h := newTestHarvester(t, client, &stubPolicy{}, renderer, &stubDetector{needsJS: true})

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.NoError(t, err)
	require.Equal(t, []string{"https://dealer.example.com/vehicle/js-only-car"}, got)
	require.Equal(t, 1, renderer.calls)
}

func TestHarvestSkipsHeadlessWhenDetectorDeclines(t *testing.T) {
	shell := `<html><body><div id="app"></div></body></html>`
	client := &stubClient{pages: map[string]string{
		"https://dealer.example.com/new-inventory/": shell,
	}}
	renderer := &stubRenderer{body: "<html></html>"}
	h := newTestHarvester(t, client, &stubPolicy{}, renderer, &stubDetector{needsJS: false})

	got, err := h.Harvest(context.Background(), "https://dealer.example.com/new-inventory/")

	require.NoError(t, err)
	require.Empty(t, got)
	require.Zero(t, renderer.calls)
}
