package passwd

import "fmt"

type (
	InvalidHash struct {
		Reason string
	}
)

func (i InvalidHash) Error() string {
	return fmt.Sprintf("invalid password hash: %v", i.Reason)
}
