package errors

import "fmt"

func New(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Wrap annotates err so that errors.Is/As still match it.
func Wrap(err error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func AsError(err interface{}) error {
	switch e := err.(type) {
	case error:
		return e
	default:
		return fmt.Errorf("%v", err)
	}
}
