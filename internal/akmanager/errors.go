package akmanager

import "fmt"

func statusf(code int) error {
	return fmt.Errorf("akmanager: unexpected status %d", code)
}

func errWrongAKSize(n int) error {
	return fmt.Errorf("akmanager: unsealed access key has wrong size %d, want 32", n)
}

func errWrongKeySize(n int) error {
	return fmt.Errorf("akmanager: public key has wrong size %d, want 32", n)
}
