package models

// TriggerRunRow is one flattened trigger run, ready for staging.
type TriggerRunRow struct {
	AdditionalProperties string `db:"additional_properties"`
	TriggerRunID         string `db:"trigger_run_id"`
	TriggerName          string `db:"trigger_name"`
	TriggerType          string `db:"trigger_type"`
	TriggerRunTimestamp  string `db:"trigger_run_timestamp"`
	Status               string `db:"status"`
	Properties           string `db:"properties"`
	TriggeredPipelines   string `db:"triggered_pipelines"`
	RunDimension         string `db:"run_dimension"`
	DependencyStatus     string `db:"dependency_status"`
	Audit
}
