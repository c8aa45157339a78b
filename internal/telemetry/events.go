package telemetry

// Event names.
const (
	EventCommandExecuted = "command_executed"
	EventEmailIngested   = "email_ingested"
	EventEmailFailed     = "email_failed"
	EventConsolidation   = "consolidation"
	EventSweepCompleted  = "sweep_completed"
)
