package auth

// Scopes understood by the dashboard API.
const (
	ScopeDashboardRead  = "dashboard:read"
	ScopeDashboardWrite = "dashboard:write"
	ScopeSyncTrigger    = "sync:trigger"
)
