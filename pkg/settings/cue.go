package settings

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// schema closes the settings struct, so misspelled keys are reported, and
// constrains the enumerated values.
const schema = `
#Settings: {
	database?: {
		path?:           string & !=""
		max_open_conns?: int & >=0
	}
	plugins?: {
		dirs?: [...string]
		timeout_seconds?: int & >=0
	}
	run?: {
		workers?:     int & >=1 & <=256
		format?:      "tsv" | "jsonl"
		record?:      bool
		max_retries?: int & >=0 & <=20
	}
	logging?: {
		level?:  "trace" | "debug" | "info" | "warn" | "error"
		format?: "console" | "json"
		output?: string
	}
	telemetry?: {
		metrics_addr?: string
		tracing?: {
			exporter?:      "none" | "stdout" | "otlp"
			endpoint?:      string
			sampling_rate?: number & >=0 & <=1
			insecure?:      bool
		}
	}
}
`

// compileCUE evaluates a CUE settings file against the schema and returns
// it as JSON.
func compileCUE(path string, data []byte) ([]byte, error) {
	ctx := cuecontext.New()

	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Settings"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile settings schema: %w", err)
	}

	val := ctx.CompileBytes(data, cue.Filename(path))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEErrors(err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, convertCUEErrors(err)
	}
	return raw, nil
}

// convertCUEErrors converts CUE errors to ValidationErrors.
func convertCUEErrors(err error) ValidationErrors {
	var out ValidationErrors

	for _, e := range errors.Errors(err) {
		ve := ValidationError{Message: errors.Details(e, nil)}
		if pos := errors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}

	return out
}
