package validation

import (
	"fmt"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/prize-arena-payments/internal/contests"
)

// sessionPrefix is carried by every hosted checkout session id.
const sessionPrefix = "cs_"

// New returns a configured validator with the custom tags and struct-level
// validations registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// checkout_session: value looks like a hosted checkout session id
	_ = v.RegisterValidation("checkout_session", checkoutSession)

	// contest status changes must follow the contest lifecycle
	v.RegisterStructValidation(contestStatusStructValidation, ContestStatusRequest{})

	return v
}

func checkoutSession(fl validatorv10.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return strings.HasPrefix(s, sessionPrefix) && len(s) > len(sessionPrefix)
}

// contestStatusStructValidation rejects transitions the lifecycle does not allow.
func contestStatusStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ContestStatusRequest)

	from, err1 := contests.ParseStatus(req.From)
	to, err2 := contests.ParseStatus(req.To)
	if err1 != nil || err2 != nil {
		// oneof already reports unknown values
		return
	}
	if !contests.CanTransition(from, to) {
		sl.ReportError(req.To, "to", "To", "contest_transition", fmt.Sprintf("%s -> %s", from, to))
	}
}
