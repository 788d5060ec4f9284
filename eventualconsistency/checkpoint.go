package eventualconsistency

import (
	"context"
	"errors"
	"time"

	"github.com/s3db-go/s3db/resource"
	"github.com/s3db-go/s3db/schema"
)

// checkpointResourceConfig declares the recovery-checkpoint resource for
// one (resource, field) pair, one record per tracked record id: the
// consolidated value plus the transaction id range it summarizes.
func checkpointResourceConfig(resourceName, field string) resource.Config {
	return resource.Config{
		Name: checkpointResourceName(resourceName, field),
		Attributes: []schema.AttributeDef{
			{Name: "cohort", Type: "string", Required: true},
			{Name: "value", Type: "number", Required: true},
			{Name: "minTxId", Type: "string", Required: true},
			{Name: "maxTxId", Type: "string", Required: true},
			{Name: "createdAt", Type: "date", Required: true},
		},
	}
}

// checkpoint mirrors the recovery snapshot persisted after a consolidation.
type checkpoint struct {
	Cohort    string
	Value     float64
	MinTxID   string
	MaxTxID   string
	CreatedAt time.Time
}

// writeCheckpoint persists or replaces id's checkpoint.
func (p *Plugin) writeCheckpoint(ctx context.Context, t *target, field, id string, cp checkpoint) error {
	if !p.cfg.Checkpoints.Enabled {
		return nil
	}
	ckRes := t.checkpoints[field]
	patch := map[string]interface{}{
		"id":        id,
		"cohort":    cp.Cohort,
		"value":     cp.Value,
		"minTxId":   cp.MinTxID,
		"maxTxId":   cp.MaxTxID,
		"createdAt": cp.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := ckRes.Get(ctx, id)
	if errors.Is(err, resource.ErrNotFound) {
		_, err = ckRes.Insert(ctx, patch)
		return err
	}
	if err != nil {
		return err
	}
	delete(patch, "id")
	_, err = ckRes.Update(ctx, id, patch)
	return err
}

// loadCheckpoint reads id's most recent checkpoint, used during
// consolidation to detect transactions already folded into the primary by
// a run that crashed before finishing its mark-applied pass.
func (p *Plugin) loadCheckpoint(ctx context.Context, t *target, field, id string) (checkpoint, bool, error) {
	ckRes := t.checkpoints[field]
	rec, err := ckRes.Get(ctx, id)
	if errors.Is(err, resource.ErrNotFound) {
		return checkpoint{}, false, nil
	}
	if err != nil {
		return checkpoint{}, false, err
	}
	createdAt, _ := parseTimestamp(rec["createdAt"])
	value, _ := rec["value"].(float64)
	return checkpoint{
		Cohort:    stringField(rec, "cohort"),
		Value:     value,
		MinTxID:   stringField(rec, "minTxId"),
		MaxTxID:   stringField(rec, "maxTxId"),
		CreatedAt: createdAt,
	}, true, nil
}
