package hnsw

import "github.com/calvinalkan/evec/errs"

func errCapacity() error {
	return errs.ErrCapacity
}
