package dashboard

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/salesroom/salesroom/internal/sales"
)

// Query is the caller identity plus the dashboard filter selections. Filter
// fields accept "" or "All" for no constraint.
type Query struct {
	Email    string `validate:"required,email"`
	Year     string `validate:"omitempty,len=4,numeric"`
	Quarter  string `validate:"omitempty,oneof=1 2 3 4"`
	Month    string `validate:"omitempty,oneof=1 2 3 4 5 6 7 8 9 10 11 12 01 02 03 04 05 06 07 08 09"`
	Status   string `validate:"omitempty,max=32"`
	Agent    string `validate:"omitempty,max=200"`
	Industry string `validate:"omitempty,max=200"`
}

// DetailQuery selects one rollup group of the filtered view.
type DetailQuery struct {
	Query
	Dimension string `validate:"required,oneof=agent industry client status all"`
	Key       string `validate:"required_unless=Dimension all,max=200"`
}

func (q Query) normalized() Query {
	unset := func(v string) string {
		v = strings.TrimSpace(v)
		if strings.EqualFold(v, sales.NoConstraint) {
			return ""
		}
		return v
	}
	return Query{
		Email:    strings.TrimSpace(q.Email),
		Year:     unset(q.Year),
		Quarter:  unset(q.Quarter),
		Month:    unset(q.Month),
		Status:   unset(q.Status),
		Agent:    unset(q.Agent),
		Industry: unset(q.Industry),
	}
}

func (q Query) filter() (sales.Filter, error) {
	return sales.ParseFilter(sales.FilterInput{
		Year:     q.Year,
		Quarter:  q.Quarter,
		Month:    q.Month,
		Status:   q.Status,
		Agent:    q.Agent,
		Industry: q.Industry,
	})
}

func validationError(err error) error {
	if vErrs, ok := err.(validator.ValidationErrors); ok {
		fields := make([]string, 0, len(vErrs))
		for _, fieldErr := range vErrs {
			fields = append(fields, strings.ToLower(fieldErr.Field()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
