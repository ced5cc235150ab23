package ingest

import (
	"errors"
	"testing"
	"time"

	"backdesk/internal/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUploadSingleRecord(t *testing.T) {
	load, err := ParseUpload([]byte(`{"data":[{"Date":"2023-01-01","Close":"10"}]}`))
	require.NoError(t, err)
	require.Equal(t, 1, load.Dataset.Len())
	assert.Equal(t, 0, load.Dropped)
	closeVal, ok := load.Dataset.Records[0].Close.Float()
	require.True(t, ok)
	assert.Equal(t, 10.0, closeVal)
}

func TestParseUploadRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"empty":          "   ",
		"not json":       `{"data":[`,
		"no data":        `{"ticker":"AAPL"}`,
		"data not array": `{"data":{"Date":"2023-01-01"}}`,
		"ticker number":  `{"data":[{"Date":"2023-01-01"}],"ticker":5}`,
		"empty data":     `{"data":[]}`,
		"no objects":     `{"data":[1,"two",null]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseUpload([]byte(body))
			var inputErr *InputValidationError
			require.True(t, errors.As(err, &inputErr), "got %v", err)
			assert.Equal(t, "data", inputErr.Field)
		})
	}
}

func TestParseUploadDropsBadRecords(t *testing.T) {
	body := `{"ticker":"aapl","data":[
		{"Date":"2023-01-03","Close":3},
		{"Close":99},
		{"Date":"2023-01-02","Close":2},
		"junk"
	]}`
	load, err := ParseUpload([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 2, load.Dropped)
	assert.Equal(t, "AAPL", load.Dataset.Ticker)
	require.Equal(t, 2, load.Dataset.Len())
	assert.NoError(t, load.Dataset.CheckOrder())
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), load.Dataset.Records[0].Timestamp)
}

func TestParseUploadAllRecordsUnparseable(t *testing.T) {
	_, err := ParseUpload([]byte(`{"data":[{"Close":1},{"price":2}]}`))
	var shapeErr *normalize.DataShapeError
	require.True(t, errors.As(err, &shapeErr))
}

func TestSpanMustMatchRecords(t *testing.T) {
	_, err := ParseUpload([]byte(`{"startDate":"2023-02-01","endDate":"2023-01-01","data":[{"Date":"2023-01-10"}]}`))
	var inputErr *InputValidationError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "startDate", inputErr.Field)

	_, err = ParseUpload([]byte(`{"startDate":"2023-01-01","endDate":"2023-01-31","data":[{"Date":"2023-03-01"}]}`))
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "endDate", inputErr.Field)

	load, err := ParseUpload([]byte(`{"startDate":"2023-01-01","endDate":"2023-01-31","data":[{"Date":"2023-01-31 16:00:00"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01", load.Dataset.StartDate)
}

func TestFromHistoricalKeepsMeta(t *testing.T) {
	body := `{"ticker":"SBER","startDate":"2024-01-01","endDate":"2024-01-05","interval":"1d",
		"data":[{"('Date', '')":"2024-01-03","('Close', 'SBER')":271.5}]}`
	load, err := FromHistorical([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "SBER", load.Dataset.Ticker)
	assert.Equal(t, "1d", load.Dataset.Interval)
	c, ok := load.Dataset.Records[0].Close.Float()
	require.True(t, ok)
	assert.Equal(t, 271.5, c)
}

func TestFetchFormNormalize(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

	got, err := FetchForm{Ticker: " aapl ", StartDate: "2024-01-01"}.Normalize(now)
	require.NoError(t, err)
	assert.Equal(t, FetchForm{Ticker: "AAPL", StartDate: "2024-01-01", EndDate: "2024-05-10", Interval: "1d"}, got)

	got, err = FetchForm{Ticker: "msft", StartDate: "2024-01-01", EndDate: "2024-02-01", Interval: "1WK"}.Normalize(now)
	require.NoError(t, err)
	assert.Equal(t, "1wk", got.Interval)

	bad := []struct {
		form  FetchForm
		field string
	}{
		{FetchForm{StartDate: "2024-01-01"}, "ticker"},
		{FetchForm{Ticker: "AAPL"}, "startDate"},
		{FetchForm{Ticker: "AAPL", StartDate: "2024-03-01", EndDate: "2024-02-01"}, "startDate"},
		{FetchForm{Ticker: "AAPL", StartDate: "2024-01-01", EndDate: "soon"}, "endDate"},
		{FetchForm{Ticker: "AAPL", StartDate: "2024-01-01", Interval: "2d"}, "interval"},
	}
	for _, tc := range bad {
		_, err := tc.form.Normalize(now)
		var inputErr *InputValidationError
		require.True(t, errors.As(err, &inputErr), "%+v", tc.form)
		assert.Equal(t, tc.field, inputErr.Field)
	}
}

func TestSupportedIntervalsOrdered(t *testing.T) {
	keys := SupportedIntervals()
	assert.Equal(t, "1m", keys[0])
	assert.Equal(t, "1mo", keys[len(keys)-1])
	assert.Len(t, keys, 10)
}
