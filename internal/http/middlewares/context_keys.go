package middlewares

const (
	CtxRequestID = "request_id"
	ctxUserIDKey = "auth.userID"
	ctxMobileKey = "auth.mobile"
	ctxRoleKey   = "auth.role"
)
