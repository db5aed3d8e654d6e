package common

import (
	"github.com/vesplit/vesplit/common/errors"
)

var (
	ErrIllegalAddress = errors.NewBase(errors.IllegalArgumentError, "IllegalAddress")
)
