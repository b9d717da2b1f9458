package extract

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/datafactory"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/stream"
)

type fakeActivityRunStore struct {
	watermark    time.Time
	hasWatermark bool
	backlog      []string

	stagedBatches [][]models.ActivityRunRow
	mergeCalls    int
	mergeResult   int64
	stageErr      error
	mergeErr      error
}

func (f *fakeActivityRunStore) LastWatermark(ctx context.Context) (time.Time, bool, error) {
	return f.watermark, f.hasWatermark, nil
}

func (f *fakeActivityRunStore) PendingPipelineRuns(ctx context.Context, limit int) ([]string, error) {
	if limit < len(f.backlog) {
		return f.backlog[:limit], nil
	}
	return f.backlog, nil
}

func (f *fakeActivityRunStore) Stage(ctx context.Context, rows []models.ActivityRunRow) (int64, error) {
	if f.stageErr != nil {
		return 0, f.stageErr
	}
	f.stagedBatches = append(f.stagedBatches, rows)
	return int64(len(rows)), nil
}

func (f *fakeActivityRunStore) Merge(ctx context.Context) (int64, error) {
	if f.mergeErr != nil {
		return 0, f.mergeErr
	}
	f.mergeCalls++
	return f.mergeResult, nil
}

type fakeClient struct {
	activityRuns map[string][]map[string]any
	failRuns     map[string]error
	pipelineRuns []map[string]any
	triggerRuns  []map[string]any
	pipelines    []map[string]any
	datasets     []map[string]any
	linked       []map[string]any
	triggers     []map[string]any
}

func (f *fakeClient) QueryActivityRuns(ctx context.Context, rg, factory, runID string, w datafactory.Window) iter.Seq2[map[string]any, error] {
	if err, ok := f.failRuns[runID]; ok {
		return stream.Error[map[string]any](err)
	}
	return stream.Of(f.activityRuns[runID]...)
}

func (f *fakeClient) QueryPipelineRuns(ctx context.Context, rg, factory string, w datafactory.Window) iter.Seq2[map[string]any, error] {
	return stream.Of(f.pipelineRuns...)
}

func (f *fakeClient) QueryTriggerRuns(ctx context.Context, rg, factory string, w datafactory.Window) iter.Seq2[map[string]any, error] {
	return stream.Of(f.triggerRuns...)
}

func (f *fakeClient) ListPipelines(ctx context.Context, rg, factory string) iter.Seq2[map[string]any, error] {
	return stream.Of(f.pipelines...)
}

func (f *fakeClient) ListDatasets(ctx context.Context, rg, factory string) iter.Seq2[map[string]any, error] {
	return stream.Of(f.datasets...)
}

func (f *fakeClient) ListLinkedServices(ctx context.Context, rg, factory string) iter.Seq2[map[string]any, error] {
	return stream.Of(f.linked...)
}

func (f *fakeClient) ListTriggers(ctx context.Context, rg, factory string) iter.Seq2[map[string]any, error] {
	return stream.Of(f.triggers...)
}

type fakePipelineRunStore struct {
	watermark    time.Time
	hasWatermark bool
	staged       []models.PipelineRunRow
	mergeResult  int64
}

func (f *fakePipelineRunStore) LastWatermark(ctx context.Context) (time.Time, bool, error) {
	return f.watermark, f.hasWatermark, nil
}

func (f *fakePipelineRunStore) Stage(ctx context.Context, rows []models.PipelineRunRow) (int64, error) {
	f.staged = rows
	return int64(len(rows)), nil
}

func (f *fakePipelineRunStore) Merge(ctx context.Context) (int64, error) {
	return f.mergeResult, nil
}

type fakeTriggerRunStore struct {
	staged      []models.TriggerRunRow
	mergeResult int64
}

func (f *fakeTriggerRunStore) LastWatermark(ctx context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (f *fakeTriggerRunStore) Stage(ctx context.Context, rows []models.TriggerRunRow) (int64, error) {
	f.staged = rows
	return int64(len(rows)), nil
}

func (f *fakeTriggerRunStore) Merge(ctx context.Context) (int64, error) {
	return f.mergeResult, nil
}

type fakeCatalogStore struct {
	resourceTable string
	resources     []models.FactoryResourceRow
	triggers      []models.TriggerRow
}

func (f *fakeCatalogStore) ReplaceResources(ctx context.Context, table string, rows []models.FactoryResourceRow) (int64, error) {
	f.resourceTable = table
	f.resources = rows
	return int64(len(rows)), nil
}

func (f *fakeCatalogStore) ReplaceTriggers(ctx context.Context, rows []models.TriggerRow) (int64, error) {
	f.triggers = rows
	return int64(len(rows)), nil
}

type fakeLocker struct {
	err      error
	acquired []string
	released int
}

type fakeLock struct{ locker *fakeLocker }

func (l *fakeLock) Release(ctx context.Context) error {
	l.locker.released++
	return nil
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired = append(f.acquired, key)
	return &fakeLock{locker: f}, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestService(activity *fakeActivityRunStore, client *fakeClient, locker Locker) *Service {
	svc := NewService(
		activity,
		&fakePipelineRunStore{},
		&fakeTriggerRunStore{},
		&fakeCatalogStore{},
		client,
		locker,
		nil,
		testLogger(),
		Options{Actor: "tester"},
	)
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func activityRecord(runID, activityID, status string, end any) map[string]any {
	return map[string]any{
		"pipelineName":      "daily-load",
		"pipelineRunId":     runID,
		"activityName":      "copy",
		"activityType":      "Copy",
		"activityRunId":     activityID,
		"linkedServiceName": "blob",
		"status":            status,
		"activityRunStart":  "2026-08-31T01:00:00Z",
		"activityRunEnd":    end,
		"durationInMs":      float64(83000),
		"input":             map[string]any{"source": "blob", "rows": nil},
		"output":            map[string]any{"written": float64(10)},
		"error":             nil,
		"retryAttempt":      float64(1),
	}
}

func TestGetActivityRunsEmptyBacklog(t *testing.T) {
	store := &fakeActivityRunStore{hasWatermark: true, watermark: time.Now().UTC()}
	svc := newTestService(store, &fakeClient{}, nil)

	result := svc.Run(t.Context(), models.ExtractRequest{
		APIName:       models.APIGetActivityRuns,
		FactoryName:   "factory-a",
		ResourceGroup: "rg-a",
	})

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, models.APIGetActivityRuns, result.FunctionName)
	// empty batch must not touch the staging table
	assert.Empty(t, store.stagedBatches)
	assert.Zero(t, store.mergeCalls)

	message := result.Message.(map[string]any)
	assert.Equal(t, int64(0), message["impacted_rows"])
	assert.Equal(t, 0, message["record_count"])
}

func TestGetActivityRunsStagesAndMerges(t *testing.T) {
	store := &fakeActivityRunStore{
		hasWatermark: true,
		watermark:    time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		backlog:      []string{"run-1", "run-2"},
		mergeResult:  3,
	}
	client := &fakeClient{
		activityRuns: map[string][]map[string]any{
			"run-1": {
				activityRecord("run-1", "act-1", "Succeeded", "2026-08-31T02:00:00Z"),
				activityRecord("run-1", "act-2", "InProgress", nil),
			},
			"run-2": {
				activityRecord("run-2", "act-3", "Succeeded", "2026-08-31T03:00:00Z"),
			},
		},
	}
	svc := newTestService(store, client, nil)

	result := svc.Run(t.Context(), models.ExtractRequest{
		APIName:       models.APIGetActivityRuns,
		FactoryName:   "factory-a",
		ResourceGroup: "rg-a",
	})

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, store.stagedBatches, 1)
	rows := store.stagedBatches[0]
	require.Len(t, rows, 3)
	assert.Equal(t, 1, store.mergeCalls)

	// order follows the backlog, parents concatenated in sequence
	assert.Equal(t, []string{"act-1", "act-2", "act-3"},
		[]string{rows[0].ActivityRunID, rows[1].ActivityRunID, rows[2].ActivityRunID})

	// missing end lands as the open-ended sentinel
	assert.Equal(t, "2999-01-01T00:00:00.000", rows[1].ActivityRunEnd)
	assert.Equal(t, "2026-08-31T02:00:00.000", rows[0].ActivityRunEnd)

	// null leaves inside payloads become the None literal
	assert.Contains(t, rows[0].Input, `"rows":"None"`)
	// null error payload collapses to the empty object
	assert.Equal(t, "{}", rows[0].Error)
	// unclaimed keys ride along in additional properties
	assert.Contains(t, rows[0].AdditionalProperties, "retryAttempt")

	assert.Equal(t, "00:01:23", rows[0].DurationHHMISS)

	// every row carries the invocation stamp
	stamp := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, stamp, rows[0].ETLInsertTS)
	assert.Equal(t, stamp, rows[0].ETLUpdateTS)
	assert.Equal(t, "tester", rows[0].ETLInsertID)

	message := result.Message.(map[string]any)
	assert.Equal(t, int64(3), message["impacted_rows"])
	assert.NotContains(t, message, "failed_pipeline_runs")
}

func TestGetActivityRunsSkipsFailedParent(t *testing.T) {
	store := &fakeActivityRunStore{
		hasWatermark: true,
		watermark:    time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		backlog:      []string{"run-1", "run-bad", "run-3"},
		mergeResult:  2,
	}
	client := &fakeClient{
		activityRuns: map[string][]map[string]any{
			"run-1": {activityRecord("run-1", "act-1", "Succeeded", "2026-08-31T02:00:00Z")},
			"run-3": {activityRecord("run-3", "act-3", "Succeeded", "2026-08-31T04:00:00Z")},
		},
		failRuns: map[string]error{"run-bad": errors.New("query returned 500")},
	}
	svc := newTestService(store, client, nil)

	result := svc.Run(t.Context(), models.ExtractRequest{
		APIName:       models.APIGetActivityRuns,
		FactoryName:   "factory-a",
		ResourceGroup: "rg-a",
	})

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, store.stagedBatches, 1)
	assert.Len(t, store.stagedBatches[0], 2)

	message := result.Message.(map[string]any)
	failed := message["failed_pipeline_runs"].([]string)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "run-bad")
}

func TestGetActivityRunsBacklogHonorsLimit(t *testing.T) {
	store := &fakeActivityRunStore{
		hasWatermark: true,
		watermark:    time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		backlog:      []string{"run-1", "run-2", "run-3"},
	}
	client := &fakeClient{activityRuns: map[string][]map[string]any{
		"run-1": {activityRecord("run-1", "act-1", "Succeeded", "2026-08-31T02:00:00Z")},
	}}
	svc := newTestService(store, client, nil)

	limit := 1
	result := svc.Run(t.Context(), models.ExtractRequest{
		APIName:       models.APIGetActivityRuns,
		FactoryName:   "factory-a",
		ResourceGroup: "rg-a",
		APILimit:      &limit,
	})

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, store.stagedBatches, 1)
	assert.Len(t, store.stagedBatches[0], 1)
}

func TestResolveWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		watermark     time.Time
		hasWatermark  bool
		offsetDays    int
		expectedAfter time.Time
	}{
		{
			name:          "watermark minus lookback",
			watermark:     time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC),
			hasWatermark:  true,
			offsetDays:    1,
			expectedAfter: time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC),
		},
		{
			name:          "empty table bootstraps from now",
			hasWatermark:  false,
			offsetDays:    1,
			expectedAfter: now.AddDate(0, 0, -1),
		},
		{
			name:          "zero offset keeps the watermark edge",
			watermark:     time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC),
			hasWatermark:  true,
			offsetDays:    0,
			expectedAfter: time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeActivityRunStore{watermark: tt.watermark, hasWatermark: tt.hasWatermark}
			svc := newTestService(store, &fakeClient{}, nil)

			window, err := svc.resolveWindow(t.Context(), store.LastWatermark, tt.offsetDays)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedAfter, window.After)
			assert.Equal(t, now, window.Before)
		})
	}
}

func TestRunLockContention(t *testing.T) {
	locker := &fakeLocker{err: redis.ErrLockNotAcquired}
	svc := newTestService(&fakeActivityRunStore{}, &fakeClient{}, locker)

	result := svc.Run(t.Context(), models.ExtractRequest{
		APIName:       models.APIGetActivityRuns,
		FactoryName:   "factory-a",
		ResourceGroup: "rg-a",
	})

	assert.Equal(t, models.StatusException, result.Status)
	assert.Equal(t, 500, result.StatusCode)
	assert.Contains(t, result.Message.(string), "already in progress")
}

func TestRunReleasesLock(t *testing.T) {
	locker := &fakeLocker{}
	store := &fakeActivityRunStore{hasWatermark: true, watermark: time.Now().UTC()}
	svc := newTestService(store, &fakeClient{}, locker)

	result := svc.Run(t.Context(), models.ExtractRequest{
		APIName:       models.APIGetActivityRuns,
		FactoryName:   "factory-a",
		ResourceGroup: "rg-a",
	})

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, []string{models.APIGetActivityRuns}, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestRunUnknownAPIName(t *testing.T) {
	svc := newTestService(&fakeActivityRunStore{}, &fakeClient{}, nil)

	result := svc.Run(t.Context(), models.ExtractRequest{APIName: "GetSomethingElse"})

	assert.Equal(t, models.StatusException, result.Status)
	assert.Equal(t, 500, result.StatusCode)
	assert.Contains(t, result.Message.(string), "GetActivityRuns")
}

func TestGetPipelineRunsFlattens(t *testing.T) {
	pipelineStore := &fakePipelineRunStore{hasWatermark: true, watermark: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), mergeResult: 1}
	client := &fakeClient{pipelineRuns: []map[string]any{
		{
			"runId":        "run-9",
			"runGroupId":   "grp-1",
			"isLatest":     true,
			"pipelineName": "daily-load",
			"parameters":   map[string]any{"day": "2026-08-31"},
			"invokedBy":    map[string]any{"name": "trigger-1", "invokedByType": "ScheduleTrigger"},
			"lastUpdated":  "2026-08-31T05:00:00Z",
			"runStart":     "2026-08-31T04:00:00Z",
			"runEnd":       nil,
			"durationInMs": nil,
			"status":       "InProgress",
			"message":      nil,
		},
	}}

	svc := NewService(
		&fakeActivityRunStore{},
		pipelineStore,
		&fakeTriggerRunStore{},
		&fakeCatalogStore{},
		client,
		nil,
		nil,
		testLogger(),
		Options{Actor: "tester"},
	)
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }

	result := svc.Run(t.Context(), models.ExtractRequest{
		APIName:       models.APIGetPipelineRuns,
		FactoryName:   "factory-a",
		ResourceGroup: "rg-a",
	})

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, pipelineStore.staged, 1)
	row := pipelineStore.staged[0]
	assert.Equal(t, "run-9", row.RunID)
	assert.Equal(t, "true", row.IsLatest)
	assert.Equal(t, "2999-01-01T00:00:00.000", row.RunEnd)
	assert.Equal(t, "00:00:00", row.DurationHHMISS)
	assert.Equal(t, "None", row.Message)
	assert.Contains(t, row.InvokedBy, "ScheduleTrigger")
}

func TestGetDatasetsFullRefresh(t *testing.T) {
	catalogStore := &fakeCatalogStore{}
	client := &fakeClient{datasets: []map[string]any{
		{"id": "/ds/1", "name": "orders", "type": "Microsoft.DataFactory/factories/datasets",
			"properties": map[string]any{"type": "AzureBlob", "structure": nil}, "etag": "0001"},
	}}

	svc := NewService(
		&fakeActivityRunStore{},
		&fakePipelineRunStore{},
		&fakeTriggerRunStore{},
		catalogStore,
		client,
		nil,
		nil,
		testLogger(),
		Options{Actor: "tester"},
	)

	result := svc.Run(t.Context(), models.ExtractRequest{
		APIName:       models.APIGetDatasets,
		FactoryName:   "factory-a",
		ResourceGroup: "rg-a",
	})

	require.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "t_adf_meta_datasets", catalogStore.resourceTable)
	require.Len(t, catalogStore.resources, 1)
	assert.Equal(t, "orders", catalogStore.resources[0].Name)
	assert.Contains(t, catalogStore.resources[0].Properties, `"structure":"None"`)
}

func TestGetTriggersFlattensMasterShape(t *testing.T) {
	catalogStore := &fakeCatalogStore{}
	client := &fakeClient{triggers: []map[string]any{
		{
			"id": "/triggers/nightly", "name": "nightly", "etag": "0002",
			"properties": map[string]any{
				"type":         "ScheduleTrigger",
				"runtimeState": "Started",
				"annotations":  []any{"prod"},
				"pipelines":    []any{map[string]any{"pipelineReference": map[string]any{"referenceName": "daily-load"}}},
				"typeProperties": map[string]any{
					"recurrence": map[string]any{"frequency": "Day", "interval": float64(1)},
				},
			},
		},
	}}

	svc := NewService(
		&fakeActivityRunStore{},
		&fakePipelineRunStore{},
		&fakeTriggerRunStore{},
		catalogStore,
		client,
		nil,
		nil,
		testLogger(),
		Options{Actor: "tester"},
	)

	result := svc.Run(t.Context(), models.ExtractRequest{
		APIName:       models.APIGetTriggers,
		FactoryName:   "factory-a",
		ResourceGroup: "rg-a",
	})

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, catalogStore.triggers, 1)
	row := catalogStore.triggers[0]
	assert.Equal(t, "ScheduleTrigger", row.Type)
	assert.Equal(t, "Started", row.RuntimeState)
	assert.Contains(t, row.PipelinesAndParams, "daily-load")
	// type-specific detail stays in additional properties
	assert.Contains(t, row.AdditionalProperties, "recurrence")
}
