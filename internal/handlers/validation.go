package handlers

import (
	"sync"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidatorsOnce sync.Once

// RegisterValidators adds the custom binding rules used by the request DTOs to gin's
// validator. It is safe to call more than once.
func RegisterValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("jobstatus", validJobStatus)
	})
}

func validJobStatus(fl validator.FieldLevel) bool {
	return domain.JobStatus(fl.Field().String()).IsValid()
}
