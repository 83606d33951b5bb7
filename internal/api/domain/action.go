package domain

// Actions gated by the rate limiter
const (
	ActionCreateKey = "create-key"
	ActionSubmitJob = "submit-job"
)
