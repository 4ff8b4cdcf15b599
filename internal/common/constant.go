package common

const (
	// SessionCookieName is the cookie carrying the signed session token.
	SessionCookieName = "token"

	// MaxCredentialsPerUser caps how many passwords a single user may own.
	MaxCredentialsPerUser = 300
	// MaxQuestionsPerCredential caps the security question set of one password.
	MaxQuestionsPerCredential = 15
	// MaxLoginHistory is the upper bound for a login history page.
	MaxLoginHistory = 100
	// DefaultLoginHistory is used when the caller does not ask for a size.
	DefaultLoginHistory = 10
)
