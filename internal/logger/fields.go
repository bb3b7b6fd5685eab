package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldDatasetID identifies the dataset an operation touches
	FieldDatasetID = "dataset_id"

	// FieldGenerationID identifies the index generation an operation touches
	FieldGenerationID = "generation_id"

	// FieldCollection is the physical collection name
	FieldCollection = "collection"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Metric fields attached per log entry for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
