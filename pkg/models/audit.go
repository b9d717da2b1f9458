package models

import "time"

// Audit holds the etl bookkeeping columns shared by every warehouse row.
type Audit struct {
	ETLInsertTS time.Time `db:"etl_insert_ts" json:"etl_insert_ts"`
	ETLUpdateTS time.Time `db:"etl_update_ts" json:"etl_update_ts"`
	ETLInsertID string    `db:"etl_insert_id" json:"etl_insert_id"`
	ETLUpdateID string    `db:"etl_update_id" json:"etl_update_id"`
}

// NewAudit stamps a fresh audit block.
func NewAudit(stamp Stamp) Audit {
	return Audit{
		ETLInsertTS: stamp.Time,
		ETLUpdateTS: stamp.Time,
		ETLInsertID: stamp.Actor,
		ETLUpdateID: stamp.Actor,
	}
}
