package httpserver

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/go-playground/validator/v10"
)

// requestValidator plugs validator/v10 into echo.Context.Validate.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (rv *requestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return common.Validation(fmt.Sprintf("%s is invalid", verrs[0].Field()))
	}
	return common.Validation("Invalid request")
}
