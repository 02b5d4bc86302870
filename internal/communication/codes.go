package communication

// SandCode is the transport-independent status carried in every Response.
type SandCode string

const (
	CodeOK              SandCode = "OK"
	CodeBadRequest      SandCode = "BAD_REQUEST"
	CodeNotFound        SandCode = "NOT_FOUND"
	CodeAlreadyExists   SandCode = "ALREADY_EXISTS"
	CodeUnauthorized    SandCode = "UNAUTHORIZED"
	CodeNotEmpty        SandCode = "NOT_EMPTY"
	CodeConflict        SandCode = "CONFLICT"
	CodeNoShrink        SandCode = "NO_SHRINK"
	CodeSessionNotFound SandCode = "SESSION_NOT_FOUND"
	CodeNotSupported    SandCode = "NOT_SUPPORTED"
	CodeUnavailable     SandCode = "UNAVAILABLE"
	CodeInternal        SandCode = "INTERNAL"
)
