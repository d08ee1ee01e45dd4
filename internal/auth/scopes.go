package auth

// OAuth scopes understood by the talent service.
const (
	ScopeCandidatesRead    = "candidates:read"
	ScopeCandidatesWrite   = "candidates:write"
	ScopeRequisitionsRead  = "requisitions:read"
	ScopeRequisitionsWrite = "requisitions:write"
)
