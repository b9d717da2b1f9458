package models

// ActivityRunRow is one flattened activity run, ready for staging.
// JSON-bearing columns hold sanitized JSON text; the promote step in the
// warehouse validates and normalizes them.
type ActivityRunRow struct {
	AdditionalProperties string `db:"additional_properties"`
	PipelineName         string `db:"pipeline_name"`
	PipelineRunID        string `db:"pipeline_run_id"`
	ActivityName         string `db:"activity_name"`
	ActivityType         string `db:"activity_type"`
	ActivityRunID        string `db:"activity_run_id"`
	LinkedServiceName    string `db:"linked_service_name"`
	Status               string `db:"status"`
	ActivityRunStart     string `db:"activity_run_start"`
	ActivityRunEnd       string `db:"activity_run_end"`
	DurationInMS         string `db:"duration_in_ms"`
	DurationHHMISS       string `db:"duration_hh_mi_ss"`
	Input                string `db:"input"`
	Output               string `db:"output"`
	Error                string `db:"error"`
	Audit
}
