package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/ingestion"
	"hedge-lab/internal/pairing"
	"hedge-lab/internal/reporting"
)

const header = "TradeHash,Short_Long,Asset,Entry_Datetimes,Market_Entries,Close_Datetimes,Market_Closes,Account_ID,User_ID,Avg_Market_Entry,Avg_Market_Close,Total_Contracts,Net_Profit,Seconds_Held\n"

const tradesCSV = header +
	"h1,LONG,NQM5,[100],[18000],[200],[18010],a1,u1,18000,18010,2,20,100\n" +
	"h2,SHORT,MNQM5,[150],[18005],[250],[18000],a2,u2,18005,18000,2,-5,100\n" +
	"h3,SHORT,ESM5,[150],[5000],[250],[5000],a3,u3,5000,5000,1,3,100\n"

// pairingForm yields exactly one h1/h2 pair with confidence 0.75.
var pairingForm = map[string]string{
	"price_threshold":      "10",
	"confidence_threshold": "0.5",
	"include_close_price":  "false",
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Config.Retention == 0 {
		opts.Config = DefaultConfig()
	}
	s := New(opts)
	t.Cleanup(func() { s.cancelJobs() })
	return s
}

func uploadRequest(t *testing.T, path, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	return do(s, httptest.NewRequest(http.MethodGet, path, nil))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// analyze runs the fixture synchronously and returns the job id.
func analyze(t *testing.T, s *Server) jobResponse {
	t.Helper()
	rec := do(s, uploadRequest(t, "/analyze", "trades.csv", tradesCSV, pairingForm))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[jobResponse](t, rec)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := get(s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, Options{})
	assert.Equal(t, http.StatusOK, get(s, "/metrics").Code)

	s = newTestServer(t, Options{DisableMetricsRoute: true})
	assert.Equal(t, http.StatusNotFound, get(s, "/metrics").Code)
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, Options{})
	resp := analyze(t, s)

	assert.Equal(t, StatusCompleted, resp.Status)
	require.NotNil(t, resp.Result)
	assert.NotEmpty(t, resp.Result.RunID)
	assert.Equal(t, 1, resp.Result.Summary.TotalPairs)
	assert.Equal(t, 1, resp.Result.Summary.InterUserHedges)
	assert.Equal(t, 3, resp.Result.DataQuality.RowsRead)
	assert.Equal(t, 10.0, resp.Params.PriceThreshold)
	assert.False(t, resp.Params.IncludeClosePrice)

	require.NotNil(t, resp.Result.Pairs)
	require.Len(t, resp.Result.Pairs.Items, 1)
	p := resp.Result.Pairs.Items[0]
	assert.InDelta(t, 0.75, p.Confidence, 1e-9)
	assert.Equal(t, "NQ", p.Asset)
	assert.Equal(t, "h1", p.TradeA.TradeHash)
	assert.Equal(t, "h2", p.TradeB.TradeHash)
	assert.Equal(t, 1, resp.Result.Pairs.Page)
	assert.False(t, resp.Result.Pairs.HasNext)
}

func TestAnalyze_Defaults(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(s, uploadRequest(t, "/analyze", "trades.CSV", tradesCSV, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[jobResponse](t, rec)
	assert.Equal(t, DefaultPriceThreshold, resp.Params.PriceThreshold)
	assert.Equal(t, DefaultConfidenceThreshold, resp.Params.ConfidenceThreshold)
	assert.True(t, resp.Params.IncludeClosePrice)
	// entry gap sits on the threshold and closes are 10 apart
	assert.Equal(t, 0, resp.Result.Summary.TotalPairs)
}

func TestAnalyze_BadRequests(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		want     int
	}{
		{"no file", "", "", nil, http.StatusBadRequest},
		{"wrong extension", "trades.txt", tradesCSV, nil, http.StatusBadRequest},
		{"confidence out of range", "trades.csv", tradesCSV, map[string]string{"confidence_threshold": "2"}, http.StatusBadRequest},
		{"negative price threshold", "trades.csv", tradesCSV, map[string]string{"price_threshold": "-1"}, http.StatusBadRequest},
		{"not a number", "trades.csv", tradesCSV, map[string]string{"price_threshold": "five"}, http.StatusBadRequest},
		{"bad flag", "trades.csv", tradesCSV, map[string]string{"include_close_price": "maybe"}, http.StatusBadRequest},
		{"missing column", "trades.csv", "TradeHash,Asset\nh1,NQ\n", nil, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, uploadRequest(t, "/analyze", tt.filename, tt.content, tt.fields))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	// not multipart at all
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)
}

func TestAnalyze_UploadTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxUploadBytes = 64
	s := newTestServer(t, Options{Config: cfg})

	rec := do(s, uploadRequest(t, "/analyze", "trades.csv", tradesCSV, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func waitCompleted(t *testing.T, s *Server, id string) jobResponse {
	t.Helper()
	var resp jobResponse
	require.Eventually(t, func() bool {
		rec := get(s, "/runs/"+id)
		if rec.Code != http.StatusOK {
			return false
		}
		resp = decode[jobResponse](t, rec)
		return resp.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return resp
}

func TestSubmitAsync(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := do(s, uploadRequest(t, "/runs", "trades.csv", tradesCSV, pairingForm))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode[jobResponse](t, rec)
	assert.Equal(t, "/runs/"+accepted.ID, rec.Header().Get("Location"))

	done := waitCompleted(t, s, accepted.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, 1, done.Result.Summary.TotalPairs)
	assert.NotNil(t, done.FinishedAt)

	list := decode[[]jobResponse](t, get(s, "/runs"))
	require.Len(t, list, 1)
	assert.Equal(t, accepted.ID, list[0].ID)
}

func TestSubmitFromStore(t *testing.T) {
	rows, err := ingestion.ReadCSV(strings.NewReader(tradesCSV))
	require.NoError(t, err)
	s := newTestServer(t, Options{Store: ingestion.StaticSource(rows)})

	req := httptest.NewRequest(http.MethodPost, "/runs?source=store&price_threshold=10&confidence_threshold=0.5&include_close_price=false", nil)
	rec := do(s, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	done := waitCompleted(t, s, decode[jobResponse](t, rec).ID)
	assert.Equal(t, 1, done.Result.Summary.TotalPairs)

	// without a store
	s = newTestServer(t, Options{})
	rec = do(s, httptest.NewRequest(http.MethodPost, "/runs?source=store", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunViews(t *testing.T) {
	s := newTestServer(t, Options{})
	id := analyze(t, s).ID

	t.Run("pairs", func(t *testing.T) {
		v := decode[viewResponse](t, get(s, "/runs/"+id+"/pairs?type=inter_user_hedge&min_confidence=0.7&sort=time-asc&page=9&page_size=5"))
		assert.Equal(t, 1, v.TotalItems)
		assert.Equal(t, 1, v.Page, "page is clamped")
		assert.Equal(t, 5, v.PageSize)
		require.Len(t, v.Items, 1)

		v = decode[viewResponse](t, get(s, "/runs/"+id+"/pairs?type=self_hedge"))
		assert.Equal(t, 0, v.TotalItems)
		assert.Equal(t, 1, v.PageCount)
		assert.Empty(t, v.Items)
	})

	t.Run("bad view params", func(t *testing.T) {
		for _, q := range []string{"type=other", "min_confidence=1.5", "page=x", "page_size=0"} {
			assert.Equal(t, http.StatusBadRequest, get(s, "/runs/"+id+"/pairs?"+q).Code, q)
		}
	})

	t.Run("unknown sort keeps discovery order", func(t *testing.T) {
		// h3/h4 pair on ES with confidence 0.53 next to the 0.75 NQ pair.
		csv := tradesCSV + "h4,LONG,ESM5,[150],[5008],[250],[5008],a4,u4,5008,5008,2,1,100\n"
		rec := do(s, uploadRequest(t, "/analyze", "trades.csv", csv, pairingForm))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		multi := decode[jobResponse](t, rec).ID

		rec = get(s, "/runs/"+multi+"/pairs?sort=bogus")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		v := decode[viewResponse](t, rec)
		require.Len(t, v.Items, 2)
		assert.Less(t, v.Items[0].ID, v.Items[1].ID)

		v = decode[viewResponse](t, get(s, "/runs/"+multi+"/pairs"))
		require.Len(t, v.Items, 2)
		assert.Greater(t, v.Items[0].Confidence, v.Items[1].Confidence)
		assert.NotEqual(t, v.Items[0].ID, v.Items[1].ID)
	})

	t.Run("pair detail", func(t *testing.T) {
		rec := get(s, "/runs/"+id+"/pairs/1")
		require.Equal(t, http.StatusOK, rec.Code)
		p := decode[reporting.PairRecord](t, rec)
		assert.Equal(t, 1, p.ID)
		assert.Equal(t, "inter_user_hedge", p.PairType)
		assert.Equal(t, "5", p.EntryPriceGap)
		assert.Equal(t, int64(50), p.EntryTimeGap)

		assert.Equal(t, http.StatusNotFound, get(s, "/runs/"+id+"/pairs/2").Code)
		assert.Equal(t, http.StatusNotFound, get(s, "/runs/"+id+"/pairs/abc").Code)
	})

	t.Run("summary", func(t *testing.T) {
		sum := decode[summaryResponse](t, get(s, "/runs/"+id+"/summary"))
		assert.Equal(t, 1, sum.Summary.TotalPairs)
		assert.InDelta(t, 0.75, sum.Summary.AvgConfidence, 1e-9)
		assert.InDelta(t, 100*2/3.0, sum.Summary.UsersPercentage, 1e-9)
		require.Len(t, sum.Histograms.Confidence, 5)
		assert.Equal(t, 1, sum.Histograms.Confidence[3].Count)
		assert.Len(t, sum.Histograms.Hour, 24)
	})

	t.Run("patterns", func(t *testing.T) {
		p := decode[reporting.PatternsSection](t, get(s, "/runs/"+id+"/patterns"))
		assert.Empty(t, p.FrequentUsers)
		require.Len(t, p.Assets, 1)
		assert.Equal(t, "NQ", p.Assets[0].Asset)
		assert.InDelta(t, 100.0, p.Assets[0].Percentage, 1e-9)
	})
}

func TestExport(t *testing.T) {
	s := newTestServer(t, Options{})
	id := analyze(t, s).ID

	rec := get(s, "/runs/"+id+"/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "h1")

	rec = get(s, "/runs/"+id+"/export.csv?type=self_hedge")
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 1, "header only")

	rec = get(s, "/runs/"+id+"/export.json")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[reporting.Report](t, rec)
	assert.Len(t, report.Pairs, 1)

	rec = get(s, "/runs/"+id+"/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Pairs")

	rec = get(s, "/runs/"+id+"/export.md")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Hedge Pair Report")

	assert.Equal(t, http.StatusNotFound, get(s, "/runs/"+id+"/export.pdf").Code)
}

func TestRunLifecycleErrors(t *testing.T) {
	s := newTestServer(t, Options{})
	params := domain.AnalysisParameters{PriceThreshold: 5, ConfidenceThreshold: 0.7}

	assert.Equal(t, http.StatusNotFound, get(s, "/runs/unknown").Code)
	assert.Equal(t, http.StatusNotFound, get(s, "/runs/unknown/pairs").Code)

	pending := newJob("pending-job", params, time.Now())
	require.NoError(t, s.Registry().Add(pending))
	rec := get(s, "/runs/pending-job/pairs")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "run is pending")

	// cancel a running job
	running := newJob("running-job", params, time.Now())
	require.NoError(t, s.Registry().Add(running))
	ctx, cancel := context.WithCancel(context.Background())
	running.start(cancel)

	rec = do(s, httptest.NewRequest(http.MethodDelete, "/runs/running-job", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Error(t, ctx.Err())

	running.finish(nil, ctx.Err(), time.Now())
	assert.Equal(t, StatusCancelled, running.Snapshot().Status)

	// finished jobs cannot be cancelled
	rec = do(s, httptest.NewRequest(http.MethodDelete, "/runs/running-job", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(s, httptest.NewRequest(http.MethodPut, "/runs/running-job", nil)).Code)
}

func TestEventsWebsocket(t *testing.T) {
	s := newTestServer(t, Options{})
	id := analyze(t, s).ID

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/runs/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "status", ev.Type)
	assert.Equal(t, StatusCompleted, ev.Status)
	assert.Equal(t, id, ev.JobID)
	assert.Equal(t, 1, ev.Admitted)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// unknown run is rejected before the upgrade
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/runs/nope/events", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventsWebsocket_LiveProgress(t *testing.T) {
	s := newTestServer(t, Options{})
	job := newJob("live", domain.AnalysisParameters{PriceThreshold: 5}, time.Now())
	require.NoError(t, s.Registry().Add(job))
	job.start(func() {})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/runs/live/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, StatusRunning, ev.Status)

	// the subscription is registered before the first frame is written
	for i := 1; i <= 3; i++ {
		job.progress(pairing.Progress{Group: fmt.Sprintf("G%d", i), Done: i, Total: 3, Admitted: 1})
	}
	job.finish(nil, fmt.Errorf("boom"), time.Now())

	var got []Event
	for {
		var e Event
		if err := conn.ReadJSON(&e); err != nil {
			break
		}
		got = append(got, e)
	}
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, StatusFailed, last.Status)
	assert.Equal(t, "boom", last.Error)
	assert.Equal(t, 3, last.Done)
	assert.Equal(t, 3, last.Admitted)
}
