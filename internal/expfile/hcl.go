package expfile

import (
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func decodeHCL(src []byte, path string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to parse experiment file %s", path)
	}
	var f File
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to decode experiment file %s", path)
	}

	// 動的な属性は cty.Value で受けてからGoの値に直す
	if s := f.Sampling; s != nil {
		v, err := fromCty(s.FracExpr)
		if err != nil {
			return nil, errors.Wrap(err, "sampling.frac")
		}
		s.Frac = v
	}
	if t := f.Tune; t != nil && !t.CustomGridExpr.IsNull() {
		grid, err := gridFromCty(t.CustomGridExpr)
		if err != nil {
			return nil, err
		}
		t.CustomGrid = grid
	}
	return &f, nil
}

// fromCty converts a known cty value to the Go value yaml.v3 would produce
// for the same literal: string, int, float64, bool, []interface{} or
// map[string]interface{}.
func fromCty(v cty.Value) (interface{}, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.NewValueError("expfile", "value must be known when the file is read")
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		var i int
		if err := gocty.FromCtyValue(v, &i); err == nil {
			return i, nil
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, errors.Wrap(err, "number")
		}
		return f, nil
	case ty.IsListType(), ty.IsTupleType(), ty.IsSetType():
		out := make([]interface{}, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			x, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	case ty.IsMapType(), ty.IsObjectType():
		out := make(map[string]interface{}, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			x, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = x
		}
		return out, nil
	}
	return nil, errors.NewValueError("expfile", "unsupported value of type "+ty.FriendlyName())
}

// gridFromCty reads an object of lists, e.g. { max_depth = [2, 4] }.
func gridFromCty(v cty.Value) (map[string][]interface{}, error) {
	raw, err := fromCty(v)
	if err != nil {
		return nil, errors.Wrap(err, "tune_model.custom_grid")
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.NewValidationError("custom_grid", "must be an object of lists", v.Type().FriendlyName())
	}
	grid := make(map[string][]interface{}, len(obj))
	for k, x := range obj {
		values, ok := x.([]interface{})
		if !ok {
			return nil, errors.NewValidationError("custom_grid."+k, "must be a list", x)
		}
		grid[k] = values
	}
	return grid, nil
}
