package models

import (
	"fmt"
	"time"
)

// API names accepted by the extract endpoint.
const (
	APIGetPipelines      = "GetPipelines"
	APIGetTriggers       = "GetTriggers"
	APIGetPipelineRuns   = "GetPipelineRuns"
	APIGetActivityRuns   = "GetActivityRuns"
	APIGetTriggerRuns    = "GetTriggerRuns"
	APIGetLinkedServices = "GetLinkedServices"
	APIGetDatasets       = "GetDatasets"
)

// AvailableAPIs returns the allow-list of extractor names, in a stable order.
func AvailableAPIs() []string {
	return []string{
		APIGetPipelines,
		APIGetTriggers,
		APIGetPipelineRuns,
		APIGetActivityRuns,
		APIGetTriggerRuns,
		APIGetLinkedServices,
		APIGetDatasets,
	}
}

// ExtractRequest is the request body for POST /api/v1/extract
type ExtractRequest struct {
	APIName         string `json:"api_name" validate:"required"`
	FactoryName     string `json:"factory_name" validate:"required"`
	ResourceGroup   string `json:"resource_group" validate:"required"`
	APILimit        *int   `json:"api_limit,omitempty" validate:"omitempty,gt=0"`
	WatermarkOffset *int   `json:"watermark_offset,omitempty" validate:"omitempty,gte=0"`
}

// Result statuses
const (
	StatusSuccess   = "Success"
	StatusException = "Exception"
)

// ExtractResult is the uniform envelope every extractor returns.
type ExtractResult struct {
	Status       string `json:"status"`
	StatusCode   int    `json:"status_code"`
	FunctionName string `json:"function_name"`
	Message      any    `json:"message"`
}

// SuccessResult builds the success envelope for an extractor.
func SuccessResult(functionName string, message any) ExtractResult {
	return ExtractResult{
		Status:       StatusSuccess,
		StatusCode:   200,
		FunctionName: functionName,
		Message:      message,
	}
}

// ExceptionResult builds the failure envelope for an extractor.
func ExceptionResult(functionName string, err error) ExtractResult {
	return ExtractResult{
		Status:       StatusException,
		StatusCode:   500,
		FunctionName: functionName,
		Message:      fmt.Sprintf("Exception in %s: %v", functionName, err),
	}
}

// Stamp carries the audit identity and timestamp captured once per invocation.
// Every row produced by that invocation shares the same stamp.
type Stamp struct {
	Time  time.Time
	Actor string
}
