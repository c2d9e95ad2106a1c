package errcode

// Error codes returned next to the HTTP status:
// - 0: no error
// - 4xxx: the request can be corrected by the caller
// - 5xxx: system errors
const (
	OK              = 0
	Validation      = 4000
	Unauthenticated = 4001
	Forbidden       = 4003
	NotFound        = 4004
	Conflict        = 4009
	RateLimited     = 4029
	SystemError     = 5000
)
