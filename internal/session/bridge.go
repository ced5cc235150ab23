package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backdesk/internal/logger"
	"backdesk/internal/market"
)

var log = logger.Named("session")

const datasetKey = "dataset"

// Bridge hands the loaded dataset from the data page to the backtest page
// of one session.
type Bridge struct {
	kv        KV
	sessionID string
}

func NewBridge(kv KV, sessionID string) *Bridge {
	return &Bridge{kv: kv, sessionID: sessionID}
}

// Save overwrites the stored dataset.
func (b *Bridge) Save(ctx context.Context, ds *market.Dataset) error {
	if ds == nil {
		return errors.New("session: nil dataset")
	}
	payload, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("session: encode dataset: %w", err)
	}
	if err := b.kv.Put(ctx, b.sessionID, datasetKey, payload); err != nil {
		return fmt.Errorf("session: save dataset: %w", err)
	}
	return nil
}

// Load returns the stored dataset. Anything wrong with the stored state,
// including an unreachable store, is logged and reported as absent.
func (b *Bridge) Load(ctx context.Context) (*market.Dataset, bool) {
	payload, ok, err := b.kv.Get(ctx, b.sessionID, datasetKey)
	if err != nil {
		log.Warnf("session %s: read dataset failed: %v", b.sessionID, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var ds market.Dataset
	if err := json.Unmarshal(payload, &ds); err != nil {
		log.Warnf("session %s: discarding malformed dataset: %v", b.sessionID, err)
		return nil, false
	}
	if len(ds.Records) == 0 {
		log.Warnf("session %s: discarding stored dataset without records", b.sessionID)
		return nil, false
	}
	if err := ds.CheckOrder(); err != nil {
		log.Warnf("session %s: discarding unordered dataset: %v", b.sessionID, err)
		return nil, false
	}
	return &ds, true
}
