package validation

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

	// Colombian plates: three letters + three digits (cars) or three letters +
	// two digits + one letter (motorcycles).
	carPlateRegex  = regexp.MustCompile(`^[A-Z]{3}[0-9]{3}$`)
	motoPlateRegex = regexp.MustCompile(`^[A-Z]{3}[0-9]{2}[A-Z]$`)
)

func init() {
	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterRules(engine)
	}
}

// RegisterRules adds the domain binding tags to a validator engine. The init
// above wires them into gin's default binding, so request structs can use
// `binding:"plate"` and `binding:"phone"` alongside the builtin rules.
func RegisterRules(v *validator.Validate) {
	_ = v.RegisterValidation("phone", validPhoneField)
	_ = v.RegisterValidation("plate", validPlateField)
}

func validPhoneField(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validPlateField(fl validator.FieldLevel) bool {
	return ValidPlate(NormalizePlate(fl.Field().String()))
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	return len(email) > 0 && emailRegex.MatchString(email)
}
