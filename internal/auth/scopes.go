package auth

// Known OAuth scopes used by the training service.
const (
	ScopeTrainingRead    = "training:read"
	ScopeTrainingRefresh = "training:refresh"
)
