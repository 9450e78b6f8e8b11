package domain

// HealthStatus indicates doctor check outcomes.
type HealthStatus string

const (
	HealthOK    HealthStatus = "ok"
	HealthWarn  HealthStatus = "warn"
	HealthError HealthStatus = "error"
)

// HealthCheck captures a single diagnostic result.
type HealthCheck struct {
	Name    string
	Status  HealthStatus
	Details string
}

// HealthReport aggregates checks.
type HealthReport struct {
	Checks []HealthCheck
}

// FirstFailure returns the first check in error, if any.
func (r HealthReport) FirstFailure() (HealthCheck, bool) {
	for _, check := range r.Checks {
		if check.Status == HealthError {
			return check, true
		}
	}
	return HealthCheck{}, false
}
