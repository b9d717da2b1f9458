package models

// FactoryResourceRow is one listed factory resource (pipeline, dataset or
// linked service). These are full-refresh loads keyed by resource id.
type FactoryResourceRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Type       string `db:"type"`
	Properties string `db:"properties"`
	Etag       string `db:"etag"`
	Audit
}

// TriggerRow is one listed trigger, flattened into the trigger master shape.
type TriggerRow struct {
	AdditionalProperties string `db:"additional_properties"`
	ID                   string `db:"id"`
	Name                 string `db:"name"`
	Etag                 string `db:"etag"`
	Type                 string `db:"type"`
	Description          string `db:"description"`
	RuntimeState         string `db:"runtime_state"`
	Annotations          string `db:"annotations"`
	PipelinesAndParams   string `db:"pipelines_and_params"`
	Audit
}
