// Package payment holds the card-entry helpers used before a new card is
// forwarded to the payment participant.
package payment

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidCard = errors.New("invalid card details")

	nonDigits   = regexp.MustCompile(`[^0-9]`)
	expiryShape = regexp.MustCompile(`^\d{2}/\d{2}$`)
	validate    = validator.New()
)

// NewCardRequest is the card form as submitted by the user.
type NewCardRequest struct {
	CardNumber string `json:"cardNumber" validate:"required"`
	NameOnCard string `json:"nameOnCard" validate:"required"`
	Expiry     string `json:"expiry" validate:"required"`
	CVV        string `json:"cvv" validate:"required"`
}

// NewCard is the subset of a new card that may be shown to the payment
// participant.
type NewCard struct {
	Last4    string
	Brand    string
	Name     string
	ExpMonth int
	ExpYear  int
}

// FieldErrors maps form field names to a short message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, field := range []string{"cardNumber", "nameOnCard", "expiry", "cvv"} {
		if msg, ok := e[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	return strings.Join(parts, ", ")
}

func (e FieldErrors) Unwrap() error {
	return ErrInvalidCard
}

// FormatCardNumber strips non-digits and groups the rest in fours.
func FormatCardNumber(value string) string {
	v := nonDigits.ReplaceAllString(value, "")
	var parts []string
	for i := 0; i < len(v); i += 4 {
		end := i + 4
		if end > len(v) {
			end = len(v)
		}
		parts = append(parts, v[i:end])
	}
	return strings.Join(parts, " ")
}

// FormatExpiry turns digit input into MM/YY.
func FormatExpiry(value string) string {
	v := nonDigits.ReplaceAllString(value, "")
	if len(v) <= 2 {
		return v
	}
	if len(v) > 4 {
		v = v[:4]
	}
	return v[:2] + "/" + v[2:]
}

// Brand guesses the card network from the leading digit.
func Brand(number string) string {
	c := strings.ReplaceAll(number, " ", "")
	switch {
	case strings.HasPrefix(c, "4"):
		return "visa"
	case strings.HasPrefix(c, "5"), strings.HasPrefix(c, "2"):
		return "mastercard"
	case strings.HasPrefix(c, "3"):
		return "amex"
	default:
		return "generic"
	}
}

// Validate checks the form against now and returns the sanitized card. Errors
// are FieldErrors wrapping ErrInvalidCard.
func (r NewCardRequest) Validate(now time.Time) (NewCard, error) {
	errs := FieldErrors{}

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs[jsonName(fe.Field())] = "Required"
			}
		} else {
			return NewCard{}, fmt.Errorf("validate card: %w", err)
		}
	}

	digits := strings.ReplaceAll(r.CardNumber, " ", "")
	if _, ok := errs["cardNumber"]; !ok {
		if len(digits) < 13 || len(digits) > 19 || nonDigits.MatchString(digits) {
			errs["cardNumber"] = "Invalid number"
		}
	}

	name := strings.TrimSpace(r.NameOnCard)
	if _, ok := errs["nameOnCard"]; !ok {
		if name == "" {
			errs["nameOnCard"] = "Required"
		} else if len([]rune(name)) < 2 {
			errs["nameOnCard"] = "Too short"
		}
	}

	var month, year int
	if _, ok := errs["expiry"]; !ok {
		month, year, errs = checkExpiry(r.Expiry, now, errs)
	}

	if _, ok := errs["cvv"]; !ok {
		if l := len(r.CVV); l < 3 || l > 4 || nonDigits.MatchString(r.CVV) {
			errs["cvv"] = "3-4 digits"
		}
	}

	if len(errs) > 0 {
		return NewCard{}, errs
	}

	return NewCard{
		Last4:    digits[len(digits)-4:],
		Brand:    Brand(digits),
		Name:     name,
		ExpMonth: month,
		ExpYear:  year,
	}, nil
}

func checkExpiry(expiry string, now time.Time, errs FieldErrors) (int, int, FieldErrors) {
	if !expiryShape.MatchString(expiry) {
		errs["expiry"] = "MM/YY"
		return 0, 0, errs
	}
	m, _ := strconv.Atoi(expiry[:2])
	y, _ := strconv.Atoi(expiry[3:])
	cy := now.Year() % 100
	cm := int(now.Month())
	switch {
	case m < 1 || m > 12:
		errs["expiry"] = "Invalid month"
	case y < cy || (y == cy && m < cm):
		errs["expiry"] = "Expired"
	}
	return m, 2000 + y, errs
}

func jsonName(field string) string {
	switch field {
	case "CardNumber":
		return "cardNumber"
	case "NameOnCard":
		return "nameOnCard"
	case "Expiry":
		return "expiry"
	case "CVV":
		return "cvv"
	default:
		return field
	}
}
