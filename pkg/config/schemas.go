package config

import (
	"fmt"

	"cuelang.org/go/cue"
)

const schemaFileName = "schema.cue"

// SchemaPath is the definition every configuration file is unified with.
const SchemaPath = "#Config"

// builtinConfigSchema constrains badges.cue. Every field is optional; Go
// defaults fill what the file leaves out. Definitions are closed, so unknown
// fields are rejected with their position.
const builtinConfigSchema = `
#Duration: =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Capability: "cli" | "browser"

#Script: {
	name:           string & !=""
	phase:          int & >=1
	targets:        [string & !="", ...string & !=""]
	file:           string & !=""
	requires?:      [...#Capability]
	instructions?:  string
	needs_account?: bool
}

#Config: {
	account?: string

	progress?: {
		backend?: "json" | "sqlite"
		path?:    string & !=""
	}

	history?: {
		enabled?: bool
		path?:    string & !=""
	}

	cli?: {
		binary?:  string & !=""
		timeout?: #Duration
		delay?:   #Duration
	}

	browser?: {
		enabled?:            bool
		headless?:           bool
		bin?:                string
		user_data_dir?:      string
		navigation_timeout?: #Duration
		profile?: {
			bio?:      string
			location?: string
		}
	}

	templates_dir?:     string & !=""
	work_dir?:          string
	policies?:          [...string & !=""]
	scripts?:           [...#Script]
	retry_interrupted?: bool

	telemetry?: {
		log_level?:        "trace" | "debug" | "info" | "warn" | "error"
		log_format?:       "console" | "json"
		metrics_textfile?: string
		metrics_listen?:   string
		tracing_exporter?: "none" | "stdout" | "otlp"
		tracing_endpoint?: string
	}
}
`

// DefaultFile is the configuration written by "badges init".
const DefaultFile = `// Badge collector campaign configuration.

// account: "your-username"

progress: {
	backend: "json"
	path:    "badge_progress.json"
}

history: {
	enabled: false
	path:    "badge_history.db"
}

cli: {
	binary:  "kaggle"
	timeout: "5m"
	delay:   "2s"
}

browser: {
	enabled:            false
	headless:           true
	navigation_timeout: "30s"
}

templates_dir: "templates"

// Operator handlers. "badges init" writes these starter scripts for the
// phase 1 API badges; edit or remove them freely.
scripts: [{
	name:          "API notebooks"
	phase:         1
	targets:       ["python_coder", "r_coder", "api_notebook_creator", "code_uploader", "code_tagger"]
	file:          "scripts/notebooks.star"
	requires:      ["cli"]
	needs_account: true
}, {
	name:          "API dataset"
	phase:         1
	targets:       ["dataset_creator", "api_dataset_creator", "dataset_tagger"]
	file:          "scripts/datasets.star"
	requires:      ["cli"]
	needs_account: true
}, {
	name:          "API model"
	phase:         1
	targets:       ["model_creator", "api_model_creator", "model_variation_creator"]
	file:          "scripts/models.star"
	requires:      ["cli"]
	needs_account: true
}]

retry_interrupted: false

telemetry: {
	log_level:        "info"
	log_format:       "console"
	tracing_exporter: "none"
}
`

// compileSchema builds the #Config definition in ctx.
func compileSchema(ctx *cue.Context) (cue.Value, error) {
	val := ctx.CompileString(builtinConfigSchema, cue.Filename(schemaFileName))
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to compile config schema: %w", err)
	}

	def := val.LookupPath(cue.ParsePath(SchemaPath))
	if err := def.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("config schema has no %s: %w", SchemaPath, err)
	}
	return def, nil
}
