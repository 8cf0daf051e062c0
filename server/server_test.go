package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aouyang1/go-marketmaster"
	"github.com/aouyang1/go-marketmaster/dataset"
	"github.com/aouyang1/go-marketmaster/source"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteBody = `{"symbol":"AAPL","start":"2024-07-01","end":"2024-12-01"}`

func testQuote(n int) *source.Quote {
	tbl := dataset.SimulatePrices(n, 11)
	col := func(name string) []float64 {
		vals, _ := tbl.Numeric(name)
		return vals
	}
	open, high, low, closes, volume := col("Open"), col("High"), col("Low"), col("Close"), col("Volume")
	q := &source.Quote{Symbol: "AAPL"}
	for i, d := range dataset.GenerateTradingDays(n, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		q.Bars = append(q.Bars, source.Bar{Date: d, Open: open[i], High: high[i], Low: low[i], Close: closes[i], Volume: volume[i]})
	}
	last := closes[n-1]
	q.LastPrice = &last
	return q
}

func newTestServer(fetcher source.Fetcher) *httptest.Server {
	opt := NewDefaultOptions()
	opt.Logger = slog.New(slog.DiscardHandler)
	opt.Fetcher = fetcher
	return httptest.NewServer(New(opt).Handler())
}

func do(t *testing.T, method, url, contentType string, body io.Reader) (*http.Response, []byte) {
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	require.Nil(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.Nil(t, err)
	return resp, b
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	return do(t, http.MethodPost, url, "application/json", strings.NewReader(body))
}

func createSession(t *testing.T, srv *httptest.Server) string {
	resp, body := do(t, http.MethodPost, srv.URL+"/api/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var v SessionView
	require.Nil(t, json.Unmarshal(body, &v))
	require.NotEmpty(t, v.ID)
	return srv.URL + "/api/sessions/" + v.ID
}

func TestSessionWorkflow(t *testing.T) {
	fetcher := source.FetcherFunc(func(ctx context.Context, req source.Request) (*source.Quote, error) {
		return testQuote(120), nil
	})
	srv := newTestServer(fetcher)
	defer srv.Close()
	base := createSession(t, srv)

	resp, body := do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snapshot StageResponse
	require.Nil(t, json.Unmarshal(body, &snapshot))
	assert.Equal(t, marketmaster.StageWelcome, snapshot.Session.Stage)
	assert.Equal(t, []marketmaster.Stage{marketmaster.StageWelcome, marketmaster.StageLoad}, snapshot.Session.Available)

	steps := []struct {
		path string
		body string
	}{
		{"/theme", `{"theme":"techno_exchange"}`},
		{"/next", ""},
		{"/load/remote", remoteBody},
		{"/next", ""},
		{"/preprocess", ""},
		{"/next", ""},
		{"/features", `{"target":"Close","features":["Open","High"]}`},
		{"/next", ""},
		{"/split", `{"test_size":0.25,"seed":3}`},
		{"/next", ""},
		{"/train", `{"variants":["linear_regression"]}`},
		{"/next", ""},
		{"/evaluate", ""},
		{"/next", ""},
	}
	for _, step := range steps {
		resp, body := postJSON(t, base+step.path, step.body)
		require.Equal(t, http.StatusOK, resp.StatusCode, "%s: %s", step.path, body)
	}

	resp, body = do(t, http.MethodGet, base+"/results", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var results StageResponse
	require.Nil(t, json.Unmarshal(body, &results))
	assert.Equal(t, 1.0, results.Session.Progress)
	assert.Equal(t, marketmaster.StageResults, results.Session.Stage)
	assert.Equal(t, "AAPL", results.Session.Symbol)
	assert.Contains(t, string(body), "linear_regression_results.csv")

	resp, body = do(t, http.MethodGet, base+"/export/linear_regression", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "linear_regression_results.csv")
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	assert.Len(t, lines, 31)
	assert.Equal(t, "Actual Value,Predicted Value", lines[0])

	resp, body = do(t, http.MethodGet, base+"/charts/evaluate", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "echarts")

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `marketmaster_stage_runs_total{outcome="ok",stage="train"} 1`)
	assert.Contains(t, string(body), `marketmaster_remote_fetches_total{outcome="ok"} 1`)

	resp, _ = postJSON(t, base+"/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, json.Unmarshal(body, &snapshot))
	assert.Equal(t, marketmaster.FlagSet{}, snapshot.Session.Flags)
	assert.Empty(t, snapshot.Session.Charts)

	resp, _ = do(t, http.MethodDelete, base, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	fetcher := source.FetcherFunc(func(ctx context.Context, req source.Request) (*source.Quote, error) {
		if req.Symbol == "LIMIT" {
			return nil, source.ErrRateLimited
		}
		return nil, source.ErrNoData
	})

	testData := map[string]struct {
		method string
		path   string
		body   string
		atLoad bool
		status int
		level  string
	}{
		"locked stage":     {http.MethodPost, "/preprocess", "", false, http.StatusConflict, levelWarning},
		"locked results":   {http.MethodGet, "/results", "", false, http.StatusConflict, levelWarning},
		"inactive stage":   {http.MethodPost, "/load/remote", remoteBody, false, http.StatusConflict, levelWarning},
		"bad json":         {http.MethodPost, "/theme", `{"theme":`, false, http.StatusBadRequest, levelError},
		"unknown theme":    {http.MethodPost, "/theme", `{"theme":"disco"}`, false, http.StatusBadRequest, levelError},
		"missing symbol":   {http.MethodPost, "/load/remote", `{"start":"2024-07-01","end":"2024-07-09"}`, true, http.StatusUnprocessableEntity, levelError},
		"weekend range":    {http.MethodPost, "/load/remote", `{"symbol":"AAPL","start":"2024-07-06","end":"2024-07-08"}`, true, http.StatusUnprocessableEntity, levelError},
		"unknown symbol":   {http.MethodPost, "/load/remote", `{"symbol":"NOPE","start":"2024-07-01","end":"2024-07-09"}`, true, http.StatusBadGateway, levelError},
		"rate limited":     {http.MethodPost, "/load/remote", `{"symbol":"LIMIT","start":"2024-07-01","end":"2024-07-09"}`, true, http.StatusBadGateway, levelError},
		"bad split size":   {http.MethodPost, "/split", `{"test_size":0.9}`, false, http.StatusUnprocessableEntity, levelError},
		"no variants":      {http.MethodPost, "/train", `{"variants":[]}`, false, http.StatusUnprocessableEntity, levelError},
		"unknown stage":    {http.MethodPost, "/jump/nowhere", "", false, http.StatusUnprocessableEntity, levelError},
		"unknown variant":  {http.MethodGet, "/export/forest", "", false, http.StatusUnprocessableEntity, levelError},
		"charts of locked": {http.MethodGet, "/charts/train", "", false, http.StatusOK, ""},
	}

	srv := newTestServer(fetcher)
	defer srv.Close()

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			base := createSession(t, srv)
			if td.atLoad {
				resp, _ := postJSON(t, base+"/next", "")
				require.Equal(t, http.StatusOK, resp.StatusCode)
			}
			resp, body := do(t, td.method, base+td.path, "application/json", strings.NewReader(td.body))
			assert.Equal(t, td.status, resp.StatusCode, string(body))
			if td.level == "" {
				return
			}
			var p Problem
			require.Nil(t, json.Unmarshal(body, &p))
			assert.Equal(t, td.level, p.Level)
			assert.Equal(t, td.status, p.Status)
		})
	}
}

func TestNextIncomplete(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()
	base := createSession(t, srv)

	resp, _ := postJSON(t, base+"/next", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, base+"/next", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var p Problem
	require.Nil(t, json.Unmarshal(body, &p))
	assert.Equal(t, levelWarning, p.Level)
	assert.Equal(t, marketmaster.StageLoad.String(), p.Stage)
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	for _, id := range []string{"00000000-0000-0000-0000-000000000000", "not-a-uuid"} {
		resp, _ := do(t, http.MethodGet, srv.URL+"/api/sessions/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp, _ = do(t, http.MethodDelete, srv.URL+"/api/sessions/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestUpload(t *testing.T) {
	testData := map[string]struct {
		field    string
		name     string
		body     string
		status   int
		warnings int
	}{
		"csv":         {"file", "prices.csv", "Date,Open,Close\n2024-01-02,1,2\n2024-01-03,2,$3\n", http.StatusOK, 1},
		"unsupported": {"file", "prices.txt", "Date,Close\n2024-01-02,1\n", http.StatusUnprocessableEntity, 0},
		"no file":     {"upload", "prices.csv", "Date,Close\n2024-01-02,1\n", http.StatusBadRequest, 0},
	}

	srv := newTestServer(nil)
	defer srv.Close()

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			base := createSession(t, srv)
			resp, _ := postJSON(t, base+"/next", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			fw, err := mw.CreateFormFile(td.field, td.name)
			require.Nil(t, err)
			_, err = fw.Write([]byte(td.body))
			require.Nil(t, err)
			require.Nil(t, mw.Close())

			resp, body := do(t, http.MethodPost, base+"/load/upload", mw.FormDataContentType(), &buf)
			require.Equal(t, td.status, resp.StatusCode, string(body))
			if td.status != http.StatusOK {
				return
			}
			var res StageResponse
			require.Nil(t, json.Unmarshal(body, &res))
			assert.True(t, res.Session.Flags.DataLoaded)
			assert.Len(t, res.Session.Warnings, td.warnings)
			assert.Equal(t, []string{marketmaster.StageLoad.String()}, res.Session.Charts)
		})
	}
}

func TestRemoteWithoutFetcher(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()
	base := createSession(t, srv)
	resp, _ := postJSON(t, base+"/next", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, base+"/load/remote", remoteBody)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode, string(body))
}

func TestSessionCache(t *testing.T) {
	var calls atomic.Int32
	fetcher := source.FetcherFunc(func(ctx context.Context, req source.Request) (*source.Quote, error) {
		calls.Add(1)
		return testQuote(30), nil
	})
	srv := newTestServer(fetcher)
	defer srv.Close()

	first := createSession(t, srv)
	resp, _ := postJSON(t, first+"/next", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for i := 0; i < 2; i++ {
		resp, _ := postJSON(t, first+"/load/remote", remoteBody)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, int32(1), calls.Load())

	second := createSession(t, srv)
	resp, _ = postJSON(t, second+"/next", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = postJSON(t, second+"/load/remote", remoteBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()
	resp, body := do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}
