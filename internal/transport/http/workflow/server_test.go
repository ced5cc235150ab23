package workflowhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backdesk/internal/gateway/remote"
	"backdesk/internal/indicator"
	"backdesk/internal/ingest"
	"backdesk/internal/market"
	"backdesk/internal/normalize"
	"backdesk/internal/request"
	"backdesk/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	fetchErr error
	result   []byte
	payload  any
}

func (f *fakeRemote) FetchHistorical(context.Context, remote.HistoricalRequest) (*ingest.Load, error) {
	return nil, f.fetchErr
}

func (f *fakeRemote) RunBacktest(_ context.Context, payload any) ([]byte, error) {
	f.payload = payload
	return f.result, nil
}

func (f *fakeRemote) Download(_ context.Context, ds *market.Dataset) (*remote.File, error) {
	return &remote.File{Name: ds.Ticker + "_historical.json", ContentType: "application/json", Data: []byte(`{"data":[]}`)}, nil
}

const upload = `{"ticker":"AAPL","data":[{"Date":"2023-01-02","Close":10},{"Date":"2023-01-03","Close":11}]}`

func newTestServer(t *testing.T, r *fakeRemote) *Server {
	t.Helper()
	mgr := workflow.NewManager(r, nil, workflow.Options{
		Defaults: request.Defaults{Logic: "AND", InitialCapital: 10000, MaxTradeAmount: 1000, StopLossPct: 5, TakeProfitPct: 10},
	})
	srv, err := NewServer(Config{Manager: mgr, CookieName: "sid"})
	require.NoError(t, err)
	return srv
}

func do(srv *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, srv *Server) string {
	t.Helper()
	rec := do(srv, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.ID)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "sid="+body.ID)
	return body.ID
}

func TestUploadAndCurrentSession(t *testing.T) {
	srv := newTestServer(t, &fakeRemote{})
	id := createSession(t, srv)

	rec := do(srv, http.MethodPost, "/api/sessions/"+id+"/upload", upload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(srv, http.MethodGet, "/api/sessions/current/dataset", "", headerSessionID, id)
	require.Equal(t, http.StatusOK, rec.Code)
	var info workflow.DatasetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Loaded)
	assert.Equal(t, 2, info.Count)
	assert.Equal(t, "AAPL", info.Ticker)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t, &fakeRemote{})
	rec := do(srv, http.MethodGet, "/api/sessions/not-a-uuid/dataset", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFetchNoDataIsBadGateway(t *testing.T) {
	srv := newTestServer(t, &fakeRemote{fetchErr: &remote.NetworkError{Op: "historical", Status: 404, Message: "no data"}})
	id := createSession(t, srv)

	rec := do(srv, http.MethodPost, "/api/sessions/"+id+"/fetch", `{"ticker":"ZZZZ","startDate":"2024-01-01"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"no data"`)

	rec = do(srv, http.MethodPost, "/api/sessions/"+id+"/fetch", `{"startDate":"2024-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"ticker"`)

	rec = do(srv, http.MethodGet, "/api/sessions/"+id+"/dataset", "")
	assert.Contains(t, rec.Body.String(), `"loaded":false`)
}

func TestBacktestFlow(t *testing.T) {
	r := &fakeRemote{result: []byte(`{"initial_capital":10000,"final_capital":11234,"total_return":12.34,
		"max_drawdown":1.5,"winning_trades":1,"losing_trades":0,"profit_factor":null,
		"trades":[],"equity_curve":[{"date":"2023-01-03","value":11234}]}`)}
	srv := newTestServer(t, r)
	id := createSession(t, srv)
	base := "/api/sessions/" + id

	require.Equal(t, http.StatusOK, do(srv, http.MethodPost, base+"/upload", upload).Code)

	rec := do(srv, http.MethodPost, base+"/backtest", `{"stopLoss":5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"indicators"`)

	rec = do(srv, http.MethodPost, base+"/indicators/nope/toggle", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(srv, http.MethodPost, base+"/indicators/sma/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runnable":true`)

	rec = do(srv, http.MethodPut, base+"/indicators/sma/params/window", `{"value":"30"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(srv, http.MethodPost, base+"/backtest", `{"stopLoss":5,"takeProfit":"10","initialCapital":"10000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"totalReturn":"12.34%"`)

	req, ok := r.payload.(*request.BacktestRequest)
	require.True(t, ok)
	assert.Equal(t, 0.05, req.StopLoss)
	assert.Equal(t, 0.1, req.TakeProfit)
}

func TestDownloadAndChart(t *testing.T) {
	srv := newTestServer(t, &fakeRemote{})
	id := createSession(t, srv)
	base := "/api/sessions/" + id

	rec := do(srv, http.MethodPost, base+"/download", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, do(srv, http.MethodPost, base+"/upload", upload).Code)

	rec = do(srv, http.MethodPost, base+"/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="AAPL_historical.json"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, `{"data":[]}`, rec.Body.String())

	rec = do(srv, http.MethodGet, base+"/charts/price", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "AAPL close")
}

func TestFormValue(t *testing.T) {
	var body backtestBody
	require.NoError(t, json.Unmarshal([]byte(`{"logic":"OR","initialCapital":2500.5,"stopLoss":null}`), &body))
	assert.Equal(t, formValue("OR"), body.Logic)
	assert.Equal(t, formValue("2500.5"), body.InitialCapital)
	assert.Equal(t, formValue(""), body.StopLoss)

	assert.Error(t, json.Unmarshal([]byte(`{"logic":[1]}`), &body))
}

func TestSessionIndicators(t *testing.T) {
	srv := newTestServer(t, &fakeRemote{})
	id := createSession(t, srv)

	rec := do(srv, http.MethodGet, "/api/sessions/"+id+"/indicators", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Indicators []indicator.Descriptor `json:"indicators"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Indicators)
	assert.Equal(t, "sma", body.Indicators[0].ID)
}

func TestUploadWithoutObjectsIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &fakeRemote{})
	id := createSession(t, srv)

	rec := do(srv, http.MethodPost, "/api/sessions/"+id+"/upload", `{"data":[1,"two",null]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "data", body["field"])
}

func TestShapeErrorAlwaysListsKeys(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/sessions/x/upload", nil)
	abortWithError(c, &normalize.DataShapeError{Reason: "no date-like key"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []any{}, body["keys"])
}
