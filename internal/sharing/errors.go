package sharing

import "fmt"

func errStatusf(code int) error {
	return fmt.Errorf("sharing: unexpected status %d", code)
}
