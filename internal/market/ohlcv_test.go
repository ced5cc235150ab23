package market

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueMissingIsNotZero(t *testing.T) {
	var zero Value
	assert.True(t, zero.IsMissing())
	assert.False(t, Num(0).IsMissing())
	assert.True(t, Num(math.NaN()).IsMissing())
	assert.True(t, ParseValue("n/a").IsMissing())

	f, ok := ParseValue("10").Float()
	require.True(t, ok)
	assert.Equal(t, 10.0, f)
}

func TestRecordWireShape(t *testing.T) {
	rec := OHLCVRecord{
		Timestamp: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		Close:     Num(10.5),
		Volume:    Num(0),
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Date":"2023-01-02T00:00:00Z","Open":null,"High":null,"Low":null,"Close":10.5,"Volume":0}`, string(raw))

	var back OHLCVRecord
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, rec, back)
}

func TestDatasetCheckOrder(t *testing.T) {
	day := func(d int) OHLCVRecord {
		return OHLCVRecord{Timestamp: time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC)}
	}
	ok := &Dataset{Records: []OHLCVRecord{day(1), day(1), day(3)}}
	assert.NoError(t, ok.CheckOrder())

	bad := &Dataset{Records: []OHLCVRecord{day(2), day(1)}}
	assert.Error(t, bad.CheckOrder())
}

func TestDatasetCloneIsIndependent(t *testing.T) {
	ds := &Dataset{Ticker: "AAPL", Records: []OHLCVRecord{{Close: Num(1)}}}
	cp := ds.Clone()
	cp.Records[0].Close = Num(2)
	f, _ := ds.Records[0].Close.Float()
	assert.Equal(t, 1.0, f)
}
