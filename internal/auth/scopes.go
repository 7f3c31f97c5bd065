package auth

// Known OAuth scopes issued to Menta clients.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
	ScopeProgressRead    = "progress:read"
	ScopeProfileRead     = "profile:read"
	ScopeProfileWrite    = "profile:write"
)
