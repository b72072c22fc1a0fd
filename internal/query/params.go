package query

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kyleking/ae-columns/internal/errors"
)

// ParseAssignment splits "name=value" at the first '='
func ParseAssignment(s string) (string, string, error) {
	name, value, found := strings.Cut(s, "=")
	name = strings.TrimSpace(name)

	if !found || name == "" {
		return "", "", errors.Newf(errors.ErrTypeValidation,
			"invalid parameter %q: expected name=value", s)
	}

	return name, value, nil
}

// ParseStringParams parses name=value assignments as string parameters
func ParseStringParams(assignments []string) (Params, error) {
	params := make(Params, len(assignments))

	for _, a := range assignments {
		name, value, err := ParseAssignment(a)
		if err != nil {
			return nil, err
		}

		params[name] = String(value)
	}

	return params, nil
}

// AddNumberParams parses name=number assignments into params
func AddNumberParams(params Params, assignments []string) error {
	for _, a := range assignments {
		name, raw, err := ParseAssignment(a)
		if err != nil {
			return err
		}

		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return errors.Wrapf(err, errors.ErrTypeValidation,
				"parameter %q is not a number: %q", name, raw)
		}

		params[name] = Number(d)
	}

	return nil
}

// ParamsFromJSON converts decoded JSON values into parameters.
// Only strings and numbers are accepted.
func ParamsFromJSON(raw map[string]any) (Params, error) {
	params := make(Params, len(raw))

	for name, v := range raw {
		switch val := v.(type) {
		case string:
			params[name] = String(val)
		case float64:
			p, err := Float(val)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrTypeValidation, "parameter %q", name)
			}

			params[name] = p
		case json.Number:
			d, err := decimal.NewFromString(val.String())
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrTypeValidation, "parameter %q", name)
			}

			params[name] = Number(d)
		case int:
			params[name] = Int(int64(val))
		case int64:
			params[name] = Int(val)
		default:
			return nil, errors.Newf(errors.ErrTypeValidation,
				"parameter %q must be a string or a number, got %T", name, v)
		}
	}

	return params, nil
}
