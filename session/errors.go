package session

import "fmt"

type (
	InvalidConfiguration struct {
		Reason string
	}
)

func (i InvalidConfiguration) Error() string {
	return fmt.Sprintf("session: invalid configuration, %v", i.Reason)
}
