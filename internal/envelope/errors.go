package envelope

import "fmt"

func errWrongArity(want, got int) error {
	return fmt.Errorf("envelope: expected %d dot-separated parts, got %d", want, got)
}

func errBadNonceSize(got int) error {
	return fmt.Errorf("envelope: expected a 24-byte nonce, got %d bytes", got)
}
