package client

import "fmt"

func errWrongSize(what string, got, want int) error {
	return fmt.Errorf("%s: expected %d decoded bytes, got %d", what, want, got)
}

func errStatusf(code int) error {
	return fmt.Errorf("unexpected status %d", code)
}
