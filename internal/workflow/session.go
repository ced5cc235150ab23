package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"backdesk/internal/gateway/remote"
	"backdesk/internal/indicator"
	"backdesk/internal/ingest"
	"backdesk/internal/market"
	"backdesk/internal/request"
	"backdesk/internal/result"
	"backdesk/internal/session"

	"golang.org/x/sync/semaphore"
)

// DatasetInfo summarises the loaded dataset for the data page.
type DatasetInfo struct {
	Loaded    bool   `json:"loaded"`
	Ticker    string `json:"ticker,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Interval  string `json:"interval,omitempty"`
	Count     int    `json:"count"`
	Dropped   int    `json:"dropped"`
	First     string `json:"first,omitempty"`
	Last      string `json:"last,omitempty"`
}

// SelectionsView is the indicator state of the backtest page.
type SelectionsView struct {
	Selections []indicator.Selection `json:"selections"`
	Runnable   bool                  `json:"runnable"`
	Warnings   []string              `json:"warnings,omitempty"`
}

// Session is one user's workflow state. The dataset has a single writer per
// phase (upload/fetch or restore); all access goes through mu. Network calls
// are made without holding mu.
type Session struct {
	id     string
	bridge *session.Bridge
	remote Remote
	opts   Options

	mu       sync.Mutex
	dataset  *market.Dataset
	dropped  int
	restored bool
	store    *indicator.Store
	lastUsed time.Time

	inflight *semaphore.Weighted
}

func (s *Session) init() {
	s.store = indicator.NewStore(s.opts.Catalog, func() bool { return s.dataset != nil })
	s.inflight = semaphore.NewWeighted(1)
}

func (s *Session) ID() string { return s.id }

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = s.opts.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// restoreLocked pulls the persisted dataset once, the first time the
// session needs one. Caller holds mu.
func (s *Session) restoreLocked(ctx context.Context) {
	s.lastUsed = s.opts.Now()
	if s.restored {
		return
	}
	s.restored = true
	if s.dataset != nil {
		return
	}
	if ds, ok := s.bridge.Load(ctx); ok {
		s.dataset = ds
		log.Infof("session %s: restored %s dataset with %d records", s.id, orDash(ds.Ticker), ds.Len())
	}
}

func (s *Session) setDatasetLocked(ctx context.Context, load *ingest.Load) {
	s.dataset = load.Dataset
	s.dropped = load.Dropped
	s.restored = true
	s.lastUsed = s.opts.Now()
	if err := s.bridge.Save(ctx, load.Dataset); err != nil {
		log.Warnf("session %s: %v", s.id, err)
	}
}

// Upload ingests a file body and makes it the session dataset.
func (s *Session) Upload(ctx context.Context, raw []byte) (DatasetInfo, error) {
	load, err := ingest.ParseUpload(raw)
	if err != nil {
		return DatasetInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setDatasetLocked(ctx, load)
	return s.infoLocked(), nil
}

// Fetch validates form, asks the service for the history and stores it. On
// any failure the previous dataset stays in place.
func (s *Session) Fetch(ctx context.Context, form ingest.FetchForm) (DatasetInfo, error) {
	if strings.TrimSpace(form.Interval) == "" {
		form.Interval = s.opts.DefaultInterval
	}
	form, err := form.Normalize(s.opts.Now())
	if err != nil {
		return DatasetInfo{}, err
	}
	load, err := s.remote.FetchHistorical(ctx, remote.HistoricalRequest{
		Ticker:    form.Ticker,
		StartDate: form.StartDate,
		EndDate:   form.EndDate,
		Interval:  form.Interval,
	})
	if err != nil {
		return DatasetInfo{}, err
	}
	if load.Dataset.Ticker == "" {
		load.Dataset.Ticker = form.Ticker
	}
	if load.Dataset.Interval == "" {
		load.Dataset.Interval = form.Interval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setDatasetLocked(ctx, load)
	return s.infoLocked(), nil
}

func (s *Session) Info(ctx context.Context) DatasetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	return s.infoLocked()
}

func (s *Session) infoLocked() DatasetInfo {
	ds := s.dataset
	if ds == nil {
		return DatasetInfo{}
	}
	info := DatasetInfo{
		Loaded:    true,
		Ticker:    ds.Ticker,
		StartDate: ds.StartDate,
		EndDate:   ds.EndDate,
		Interval:  ds.Interval,
		Count:     ds.Len(),
		Dropped:   s.dropped,
	}
	if first, last, ok := ds.Span(); ok {
		info.First = result.FormatTime(first)
		info.Last = result.FormatTime(last)
	}
	return info
}

// Dataset returns a copy of the current dataset, restoring it if needed.
func (s *Session) Dataset(ctx context.Context) (*market.Dataset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	if s.dataset == nil {
		return nil, false
	}
	return s.dataset.Clone(), true
}

func (s *Session) Toggle(ctx context.Context, id string) (SelectionsView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	if _, err := s.store.Toggle(id); err != nil {
		return SelectionsView{}, err
	}
	return s.selectionsLocked(), nil
}

func (s *Session) SetParam(ctx context.Context, id, name string, value any) (SelectionsView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	if err := s.store.SetParam(id, name, value); err != nil {
		return SelectionsView{}, err
	}
	return s.selectionsLocked(), nil
}

// Available lists the indicators this session can select.
func (s *Session) Available() []indicator.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ListAvailable()
}

func (s *Session) Selections(ctx context.Context) SelectionsView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	return s.selectionsLocked()
}

func (s *Session) selectionsLocked() SelectionsView {
	return SelectionsView{
		Selections: s.store.Selections(),
		Runnable:   s.store.IsRunnable(),
		Warnings:   s.store.Warnings(),
	}
}

// RunBacktest submits the current dataset and selections. Only one call per
// session may be in flight; a concurrent call fails fast with ErrBusy. There
// is no timeout beyond ctx.
func (s *Session) RunBacktest(ctx context.Context, form request.Form) (*result.View, error) {
	if !s.inflight.TryAcquire(1) {
		log.Infof("session %s: ignoring backtest submission while one is running", s.id)
		return nil, ErrBusy
	}
	defer s.inflight.Release(1)

	s.mu.Lock()
	s.restoreLocked(ctx)
	ds := s.dataset
	selections := s.store.Selections()
	s.mu.Unlock()

	opts, err := request.ParseForm(form, s.opts.Defaults)
	if err != nil {
		return nil, err
	}
	req, err := request.Build(ds, selections, opts)
	if err != nil {
		return nil, err
	}
	raw, err := s.remote.RunBacktest(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := result.Adapt(raw)
	if err != nil {
		log.Warnf("session %s: %v", s.id, err)
		return nil, err
	}
	view := result.Present(res, ds)
	return &view, nil
}

// Download asks the service to package the current dataset as a file.
func (s *Session) Download(ctx context.Context) (*remote.File, error) {
	ds, ok := s.Dataset(ctx)
	if !ok {
		return nil, &ingest.InputValidationError{Field: "data", Reason: "no dataset loaded"}
	}
	return s.remote.Download(ctx, ds)
}

// PriceSeries is the close-price series of the current dataset.
func (s *Session) PriceSeries(ctx context.Context) (result.Series, bool) {
	ds, ok := s.Dataset(ctx)
	if !ok {
		return result.Series{}, false
	}
	return result.PriceSeries(ds), true
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
