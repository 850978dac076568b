package config

import "fmt"

func errMissing(field string) error {
	return fmt.Errorf("config: missing required field: %s", field)
}

func errUnexpected(msg string) error {
	return fmt.Errorf("config: %s", msg)
}
