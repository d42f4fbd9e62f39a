package auth

// Known OAuth scopes used by the engine endpoints.
const (
	ScopeParticipationsRead   = "participations:read"
	ScopeParticipationsWrite  = "participations:write"
	ScopeRecommendationsRead  = "recommendations:read"
	ScopeRecommendationsWrite = "recommendations:write"
	ScopeCompletionsWrite     = "completions:write"
)
