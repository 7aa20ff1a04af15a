package credential

import "fmt"

type (
	MalformedHeader struct {
		Reason string
	}
)

func (m MalformedHeader) Error() string {
	return fmt.Sprintf("malformed authorization header: %v", m.Reason)
}

// Is matches any MalformedHeader regardless of the reason,
// callers care about the kind of failure, not the detail.
func (m MalformedHeader) Is(target error) bool {
	_, ok := target.(MalformedHeader)
	return ok
}
