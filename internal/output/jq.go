package output

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// applyJQ runs expr against data. A single result is returned as-is;
// multiple results are collected into a slice.
func applyJQ(expr string, data any) (any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("Invalid --jq expression: %s", expr), err.Error())
	}

	var results []any
	iter := query.Run(NormalizeData(data))
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, ErrUsageHint("jq evaluation failed", err.Error())
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
