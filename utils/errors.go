package utils

// Error codes returned to the client as {"code": ..., "msg": ...}.
const (
	ErrorTokenAuthFail = 1001
	ErrorLoginRequired = 1002
	ErrorPermission    = 1003
	ErrorBadRequest    = 2001
	ErrorNotFound      = 2002
	ErrorInternal      = 5001
)
