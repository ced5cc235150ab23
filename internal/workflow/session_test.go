package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backdesk/internal/gateway/remote"
	"backdesk/internal/ingest"
	"backdesk/internal/market"
	"backdesk/internal/request"
	"backdesk/internal/result"
	"backdesk/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) FetchHistorical(ctx context.Context, req remote.HistoricalRequest) (*ingest.Load, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.Load), args.Error(1)
}

func (m *MockRemote) RunBacktest(ctx context.Context, payload any) ([]byte, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockRemote) Download(ctx context.Context, ds *market.Dataset) (*remote.File, error) {
	args := m.Called(ctx, ds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.File), args.Error(1)
}

const backtestResponse = `{"initial_capital":10000,"final_capital":11234,"total_return":12.34,
	"max_drawdown":2,"winning_trades":1,"losing_trades":0,"profit_factor":"inf",
	"trades":[{"date":"2023-01-02","type":"buy","price":10,"amount":1000,"profit":null},
	          {"date":"2023-01-03","type":"sell","price":11,"amount":1100,"profit":100}],
	"equity_curve":[{"date":"2023-01-02","value":10000},{"date":"2023-01-03","value":10100}]}`

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newManager(r Remote, kv session.KV) *Manager {
	return NewManager(r, kv, Options{
		Defaults: request.Defaults{Logic: "AND", InitialCapital: 10000, MaxTradeAmount: 1000, StopLossPct: 5, TakeProfitPct: 10},
		Now:      func() time.Time { return fixedNow },
	})
}

func TestUploadReportsInfo(t *testing.T) {
	s := newManager(&MockRemote{}, nil).Create()
	info, err := s.Upload(context.Background(), []byte(`{"data":[{"Date":"2023-01-01","Close":"10"}]}`))
	require.NoError(t, err)
	assert.True(t, info.Loaded)
	assert.Equal(t, 1, info.Count)
	assert.Equal(t, "2023-01-01", info.First)
}

func TestFetchNoDataKeepsNothing(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryKV()
	r := &MockRemote{}
	notFound := &remote.NetworkError{Op: "historical", Status: 404, Message: "no data"}
	r.On("FetchHistorical", mock.Anything, remote.HistoricalRequest{
		Ticker: "ZZZZ", StartDate: "2024-01-01", EndDate: "2024-05-10", Interval: "1d",
	}).Return(nil, notFound)

	s := newManager(r, kv).Create()
	_, err := s.Fetch(ctx, ingest.FetchForm{Ticker: "zzzz", StartDate: "2024-01-01"})
	var netErr *remote.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "no data", netErr.Message)

	assert.False(t, s.Info(ctx).Loaded)
	_, ok, _ := kv.Get(ctx, s.ID(), "dataset")
	assert.False(t, ok)
	r.AssertExpectations(t)
}

func TestFetchFailureKeepsPreviousDataset(t *testing.T) {
	ctx := context.Background()
	r := &MockRemote{}
	r.On("FetchHistorical", mock.Anything, mock.Anything).Return(nil, &remote.NetworkError{Op: "historical", Status: 500, Message: "boom"})

	s := newManager(r, nil).Create()
	_, err := s.Upload(ctx, []byte(`{"ticker":"AAPL","data":[{"Date":"2023-01-01","Close":1}]}`))
	require.NoError(t, err)

	_, err = s.Fetch(ctx, ingest.FetchForm{Ticker: "MSFT", StartDate: "2024-01-01"})
	require.Error(t, err)
	assert.Equal(t, "AAPL", s.Info(ctx).Ticker)
}

func TestFetchValidationBlocksNetwork(t *testing.T) {
	r := &MockRemote{}
	s := newManager(r, nil).Create()
	_, err := s.Fetch(context.Background(), ingest.FetchForm{Ticker: "AAPL", StartDate: "2024-03-01", EndDate: "2024-01-01"})
	var inputErr *ingest.InputValidationError
	require.True(t, errors.As(err, &inputErr))
	r.AssertNotCalled(t, "FetchHistorical", mock.Anything, mock.Anything)
}

func TestDatasetHandoffBetweenPages(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryKV()

	dataPage := newManager(&MockRemote{}, kv).Create()
	_, err := dataPage.Upload(ctx, []byte(`{"ticker":"AAPL","data":[{"Date":"2023-01-02","Close":2},{"Date":"2023-01-01","Close":1}]}`))
	require.NoError(t, err)
	saved, ok := dataPage.Dataset(ctx)
	require.True(t, ok)

	// a fresh process only shares the store
	backtestPage, err := newManager(&MockRemote{}, kv).Open(dataPage.ID())
	require.NoError(t, err)
	restored, ok := backtestPage.Dataset(ctx)
	require.True(t, ok)
	assert.Equal(t, saved, restored)

	_, err = backtestPage.Toggle(ctx, "sma")
	require.NoError(t, err)
	assert.True(t, backtestPage.Selections(ctx).Runnable)
}

func TestOpenRejectsMalformedID(t *testing.T) {
	_, err := newManager(&MockRemote{}, nil).Open("../../etc")
	assert.True(t, errors.Is(err, ErrUnknownSession))
}

func TestRunBacktest(t *testing.T) {
	ctx := context.Background()
	r := &MockRemote{}
	r.On("RunBacktest", mock.Anything, mock.MatchedBy(func(p any) bool {
		req, ok := p.(*request.BacktestRequest)
		return ok && req.StopLoss == 0.05 && req.StrategyParams.Logic == "AND" &&
			len(req.StrategyParams.Indicators) == 1 && req.StrategyParams.Indicators[0].Type == "RSI"
	})).Return([]byte(backtestResponse), nil).Once()

	s := newManager(r, nil).Create()
	_, err := s.Upload(ctx, []byte(`{"data":[{"Date":"2023-01-02","Close":10},{"Date":"2023-01-03","Close":11}]}`))
	require.NoError(t, err)
	_, err = s.Toggle(ctx, "rsi")
	require.NoError(t, err)

	view, err := s.RunBacktest(ctx, request.Form{StopLoss: "5"})
	require.NoError(t, err)
	assert.Equal(t, "12.34%", view.Summary.TotalReturn)
	assert.Equal(t, "∞", view.Summary.ProfitFactor)
	require.Len(t, view.Trades, 2)
	assert.Equal(t, result.ClassNone, view.Trades[0].Class)
	assert.Equal(t, []float64{10, 11}, view.Price.Values)
	r.AssertExpectations(t)
}

func TestRunBacktestConfigErrorsBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	r := &MockRemote{}
	s := newManager(r, nil).Create()
	_, err := s.Upload(ctx, []byte(`{"data":[{"Date":"2023-01-02","Close":10}]}`))
	require.NoError(t, err)

	_, err = s.RunBacktest(ctx, request.Form{})
	var cfgErr *request.ConfigValidationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "indicators", cfgErr.Field)

	_, _ = s.Toggle(ctx, "ema")
	_, err = s.RunBacktest(ctx, request.Form{InitialCapital: "100", MaxTradeAmount: "500"})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "maxTradeAmount", cfgErr.Field)
	r.AssertNotCalled(t, "RunBacktest", mock.Anything, mock.Anything)
}

func TestRunBacktestShapeError(t *testing.T) {
	ctx := context.Background()
	r := &MockRemote{}
	r.On("RunBacktest", mock.Anything, mock.Anything).Return([]byte(`{"trades":[]}`), nil)
	s := newManager(r, nil).Create()
	_, _ = s.Upload(ctx, []byte(`{"data":[{"Date":"2023-01-02","Close":10}]}`))
	_, _ = s.Toggle(ctx, "sma")

	_, err := s.RunBacktest(ctx, request.Form{})
	var shapeErr *result.ResultShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestRunBacktestSingleFlight(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	r := &MockRemote{}
	r.On("RunBacktest", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]byte(backtestResponse), nil).Once()

	s := newManager(r, nil).Create()
	_, _ = s.Upload(ctx, []byte(`{"data":[{"Date":"2023-01-02","Close":10}]}`))
	_, _ = s.Toggle(ctx, "macd")

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.RunBacktest(ctx, request.Form{})
	}()
	<-started

	_, err := s.RunBacktest(ctx, request.Form{})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()
	assert.NoError(t, firstErr)
	r.AssertNumberOfCalls(t, "RunBacktest", 1)
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	r := &MockRemote{}
	r.On("Download", mock.Anything, mock.AnythingOfType("*market.Dataset")).
		Return(&remote.File{Name: "AAPL_historical.json", Data: []byte("{}")}, nil)
	s := newManager(r, nil).Create()

	_, err := s.Download(ctx)
	var inputErr *ingest.InputValidationError
	require.True(t, errors.As(err, &inputErr))

	_, _ = s.Upload(ctx, []byte(`{"ticker":"AAPL","data":[{"Date":"2023-01-02","Close":10}]}`))
	f, err := s.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AAPL_historical.json", f.Name)
}

func TestPurgeEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	m := NewManager(&MockRemote{}, session.NewMemoryKV(), Options{Now: func() time.Time { return now }})
	s := m.Create()
	_, err := s.Upload(ctx, []byte(`{"data":[{"Date":"2023-01-02","Close":10}]}`))
	require.NoError(t, err)

	_, evicted, err := m.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, evicted)

	now = now.Add(2 * time.Hour)
	_, evicted, err = m.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
}
