package evec

import (
	"fmt"

	"github.com/calvinalkan/evec/errs"
)

func errInvalidConfig(msg string) error {
	return fmt.Errorf("%s: %w", msg, errs.ErrInvalidConfig)
}
