package finnhub

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnaeon/go-vcr/cassette"
	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"

	"marketlens/pkg/market"
	"marketlens/pkg/market/sources/rest"
)

// Replays the recorded quote call in testdata. Skips when the cassette is absent and
// RECORD_CASSETTES != 1; recording needs FINNHUB_API_KEY.
func TestClient_Quote_Recorded(t *testing.T) {
	cassettePath := filepath.Join("testdata", "cassettes", "finnhub_quote")
	if _, err := os.Stat(cassettePath + ".yaml"); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassettePath)
		}
		err := os.MkdirAll(filepath.Dir(cassettePath), 0o755)
		assert.NoError(t, err, "mkdir cassettes dir should succeed")
	}

	r, err := recorder.New(cassettePath)
	assert.NoError(t, err, "recorder.New should not error")
	defer func() { _ = r.Stop() }()
	r.AddFilter(func(i *cassette.Interaction) error {
		i.Request.URL = redactToken(i.Request.URL)
		return nil
	})
	r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
		return req.Method == i.Method && redactToken(req.URL.String()) == i.URL
	})

	client := New(WithHTTP(rest.WithHTTPClient(&http.Client{Transport: r})))
	raw, err := client.FetchQuote(context.Background(), market.Request{
		Symbol: "EURUSD",
		APIKey: os.Getenv("FINNHUB_API_KEY"),
	})
	assert.NoError(t, err, "FetchQuote should not error")
	q, err := client.NormalizeQuote(raw)
	assert.NoError(t, err, "NormalizeQuote should not error")
	if q != nil {
		assert.Greater(t, q.Price, 0.0, "price should be positive")
	}
}

func redactToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
