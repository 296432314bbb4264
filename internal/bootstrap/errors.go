package bootstrap

import "fmt"

// OrderError reports a sequence whose directives are out of order.
type OrderError struct {
	Directive string
	Reason    string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("bootstrap directive %q: %s", e.Directive, e.Reason)
}
