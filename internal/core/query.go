package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// RecordQuery is a compiled jq filter applied to decoded records.
type RecordQuery struct {
	expr string
	code *gojq.Code
}

// CompileQuery parses and compiles a jq expression.
func CompileQuery(expr string) (*RecordQuery, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing query %q: %w", expr, err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compiling query %q: %w", expr, err)
	}
	return &RecordQuery{expr: expr, code: code}, nil
}

// Run applies the query to each record in order and passes every non-null
// result to emit. Returning ErrStopQuery from emit ends the scan early.
// Records must be generic JSON values (maps, slices, float64, string, bool).
func (q *RecordQuery) Run(ctx context.Context, records []map[string]any, emit func(v any) error) error {
	for i, rec := range records {
		iter := q.code.RunWithContext(ctx, rec)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				var halt *gojq.HaltError
				if errors.As(err, &halt) && halt.Value() == nil {
					break
				}
				return fmt.Errorf("query %q on record %d: %w", q.expr, i+1, err)
			}
			if v == nil {
				continue
			}
			if err := emit(v); err != nil {
				if errors.Is(err, ErrStopQuery) {
					return nil
				}
				return err
			}
		}
	}
	return ctx.Err()
}

// ErrStopQuery ends RecordQuery.Run without an error.
var ErrStopQuery = errors.New("stop query")
