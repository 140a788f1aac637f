package model

import (
	"fmt"
	"math"
	"strconv"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// Parameter values arrive from YAML, HCL, CLI flags and tuning grids, so the
// same hyperparameter may be an int, a float64 or a string. These helpers
// coerce them and report a ValueError naming the parameter on failure.

// ParamInt coerces v to an int. Floats must be integral.
func ParamInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float32:
		return floatToInt(name, float64(x))
	case float64:
		return floatToInt(name, x)
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, paramError(name, v, "integer")
		}
		return n, nil
	default:
		return 0, paramError(name, v, "integer")
	}
}

func floatToInt(name string, f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, paramError(name, f, "integer")
	}
	return int(f), nil
}

// ParamFloat coerces v to a float64.
func ParamFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, paramError(name, v, "number")
		}
		return f, nil
	default:
		return 0, paramError(name, v, "number")
	}
}

// ParamString coerces v to a string.
func ParamString(name string, v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", paramError(name, v, "string")
	}
}

// ParamBool coerces v to a bool. Strings accepted by strconv.ParseBool are allowed.
func ParamBool(name string, v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, paramError(name, v, "boolean")
		}
		return b, nil
	default:
		return false, paramError(name, v, "boolean")
	}
}

// UnknownParam is returned by SetParams for keys the model does not have.
func UnknownParam(model, name string) error {
	return errors.NewValueError(model+".SetParams", fmt.Sprintf("unknown parameter %q", name))
}

func paramError(name string, v interface{}, want string) error {
	return errors.NewValueError("SetParams", fmt.Sprintf("%s: cannot use %v (%T) as %s", name, v, v, want))
}
