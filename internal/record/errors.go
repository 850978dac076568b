package record

import "fmt"

func errWrongDKSize(n int) error {
	return fmt.Errorf("record: unsealed data key has wrong size %d, want 32", n)
}

func errStatusf(code int) error {
	return fmt.Errorf("record: unexpected status %d", code)
}

func errMissingField(name string) error {
	return fmt.Errorf("record: missing required field %s", name)
}
