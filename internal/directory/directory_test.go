package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexHTML = `<html><body>
<nav>
  <a href="/">Home</a>
  <a href="/LocationsAndMenus">Locations</a>
  <a href="/LocationsAndMenus/Map">Map</a>
</nav>
<ul>
  <li><a href="/LocationsAndMenus/JavaJoes">  Java   Joe's </a></li>
  <li><a href="https://purdue.campusdish.com/LocationsAndMenus/PeteZa"><img src="x.png"><span class="location-name">Pete's Za</span></a></li>
  <li><a href="/LocationsAndMenus/JavaJoes2">Java Joe's</a></li>
  <li><a href="/About">About us</a></li>
  <li><a href="/LocationsAndMenus/Empty"><img src="y.png"></a></li>
</ul>
</body></html>`

const pageHTML = `<html><body>
<div class="location-address">Should not win</div>
<div class="address">
  <span>101 N Grant St</span><span>West Lafayette, IN</span>
  <a href="https://maps.example">Map &amp; Directions</a>
</div>
<div class="hours-container"><h4>Today's Hours</h4><p>7:00 AM - 5:00 PM</p><p>Standard Hours</p><p>Mon-Fri</p></div>
</body></html>`

type fakePages struct {
	bodies map[string]string
	err    error
	calls  []string
}

func (f *fakePages) FetchPage(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(body), nil
}

func TestParseIndex(t *testing.T) {
	t.Parallel()
	entries, err := ParseIndex(DefaultIndexURL, []byte(indexHTML))
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{ID: "javajoes", Name: "Java Joe's", URL: "https://purdue.campusdish.com/LocationsAndMenus/JavaJoes"},
		{ID: "petesza", Name: "Pete's Za", URL: "https://purdue.campusdish.com/LocationsAndMenus/PeteZa"},
	}, entries)
}

func TestDiscoverFallsBackToBrowser(t *testing.T) {
	t.Parallel()
	static := &fakePages{bodies: map[string]string{DefaultIndexURL: "<html><body>loading...</body></html>"}}
	rendered := &fakePages{bodies: map[string]string{DefaultIndexURL: indexHTML}}
	c := New(Config{}, static, rendered, nil)

	entries, err := c.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, []string{DefaultIndexURL}, rendered.calls)
}

func TestDiscoverErrorWithoutFallback(t *testing.T) {
	t.Parallel()
	c := New(Config{}, &fakePages{err: errors.New("dial tcp: refused")}, nil, nil)
	_, err := c.Discover(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch directory index")
}

func TestMetadataStrategies(t *testing.T) {
	t.Parallel()
	url := "https://purdue.campusdish.com/LocationsAndMenus/JavaJoes"
	c := New(Config{}, &fakePages{bodies: map[string]string{url: pageHTML}}, nil, nil)
	meta := c.Metadata(context.Background(), url)
	assert.Equal(t, "101 N Grant St West Lafayette, IN", meta.Address)
	assert.Equal(t, "7:00 AM - 5:00 PM", meta.Hours)
}

func TestMetadataAddressFallsThroughShortMatch(t *testing.T) {
	t.Parallel()
	url := "https://example.edu/LocationsAndMenus/Cafe"
	page := `<div class="address"><a href="#">View Map</a></div>
<div class="location-address">205 Stadium Ave <a href="#">View Map</a></div>
<div class="location-hours">` + "Open 24 hours a day, every day of the week, including holidays and breaks" + `</div>`
	c := New(Config{}, &fakePages{bodies: map[string]string{url: page}}, nil, nil)
	meta := c.Metadata(context.Background(), url)
	assert.Equal(t, "205 Stadium Ave", meta.Address)
	assert.Len(t, []rune(meta.Hours), 50)
}

func TestMetadataFailureIsEmpty(t *testing.T) {
	t.Parallel()
	c := New(Config{}, &fakePages{err: errors.New("timeout")}, nil, nil)
	assert.Equal(t, Metadata{}, c.Metadata(context.Background(), "https://example.edu/x"))
}

func TestMetadataRendersScriptShell(t *testing.T) {
	t.Parallel()
	url := "https://purdue.campusdish.com/LocationsAndMenus/JavaJoes"
	static := &fakePages{bodies: map[string]string{url: `<html><body><div id="root"></div><script src="/app.js"></script></body></html>`}}
	rendered := &fakePages{bodies: map[string]string{url: pageHTML}}
	c := New(Config{}, static, rendered, nil)

	meta := c.Metadata(context.Background(), url)
	assert.Equal(t, "101 N Grant St West Lafayette, IN", meta.Address)
	assert.Equal(t, []string{url}, rendered.calls)
}

func TestMetadataSkipsRenderForStaticPage(t *testing.T) {
	t.Parallel()
	url := "https://purdue.campusdish.com/LocationsAndMenus/JavaJoes"
	static := &fakePages{bodies: map[string]string{url: pageHTML}}
	rendered := &fakePages{err: errors.New("should not render")}
	c := New(Config{}, static, rendered, nil)

	meta := c.Metadata(context.Background(), url)
	assert.Equal(t, "7:00 AM - 5:00 PM", meta.Hours)
	assert.Empty(t, rendered.calls)
}
