package models

// PipelineRunRow is one flattened pipeline run, ready for staging.
type PipelineRunRow struct {
	AdditionalProperties string `db:"additional_properties"`
	RunID                string `db:"run_id"`
	RunGroupID           string `db:"run_group_id"`
	IsLatest             string `db:"is_latest"`
	PipelineName         string `db:"pipeline_name"`
	Parameters           string `db:"parameters"`
	RunDimensions        string `db:"run_dimensions"`
	InvokedBy            string `db:"invoked_by"`
	LastUpdated          string `db:"last_updated"`
	RunStart             string `db:"run_start"`
	RunEnd               string `db:"run_end"`
	DurationInMS         string `db:"duration_in_ms"`
	DurationHHMISS       string `db:"duration_hh_mi_ss"`
	Status               string `db:"status"`
	Message              string `db:"message"`
	Audit
}
