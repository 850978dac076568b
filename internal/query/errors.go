package query

import "fmt"

func errStatusf(code int) error {
	return fmt.Errorf("query: unexpected status %d", code)
}
