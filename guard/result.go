package guard

type (
	Kind int

	// Result is the outcome of one authentication attempt. User is set
	// only for NewToken and AuthSucceeded, TokenHeader holds the
	// "CacheToken <token>" value the caller should present next time.
	Result struct {
		Kind        Kind
		User        string
		TokenHeader string
	}
)

const (
	Failed Kind = iota
	Required
	TokenExpired
	NewToken
	AuthSucceeded
)

func (k Kind) String() string {
	switch k {
	case Failed:
		return "FAILED"
	case Required:
		return "AUTH_REQUIRED"
	case TokenExpired:
		return "TOKEN_EXPIRED"
	case NewToken:
		return "NEW_TOKEN"
	case AuthSucceeded:
		return "AUTH_SUCCEEDED"
	}
	return "UNKNOWN"
}

func (r Result) Authenticated() bool {
	return r.Kind == NewToken || r.Kind == AuthSucceeded
}
