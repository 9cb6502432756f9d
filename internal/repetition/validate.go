package repetition

import (
	"errors"
	"strings"
	"time"

	"github.com/torosent/repeater/internal/feeder"
	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/variables"
)

// RequestLookup finds a base request by reference.
type RequestLookup interface {
	Lookup(ref string) (request.Template, bool)
}

// VariableResolver exposes the ambient variables and template substitution.
type VariableResolver interface {
	EffectiveVariables() variables.Set
	ReplaceTemplates(text string, vars variables.Set) string
}

// Validated is a config that passed every rule, with its inputs already
// parsed so dispatch never touches them again.
type Validated struct {
	Config         Config
	Request        request.Template
	Records        []feeder.Record
	Plan           Plan
	MaxConcurrency int
	Delay          time.Duration
}

// Validate checks cfg in a fixed order and reports the first failing rule as a
// *ConfigError. It performs no network activity. A nil sample uses NewSampler.
func Validate(cfg Config, requests RequestLookup, vars VariableResolver, sample Sampler) (*Validated, error) {
	needsInput, err := cfg.Mode.usesInputData()
	if err != nil {
		return nil, err
	}
	needsCount, err := cfg.Mode.usesCount()
	if err != nil {
		return nil, err
	}

	ref := strings.TrimSpace(cfg.BaseRequestRef)
	if ref == "" {
		return nil, configError(CodeBaseRequestNotSelected, "base_request", nil)
	}
	if requests == nil {
		return nil, configError(CodeBaseRequestNotFound, "base_request", nil)
	}
	tmpl, ok := requests.Lookup(ref)
	if !ok {
		return nil, configError(CodeBaseRequestNotFound, "base_request", errors.New(ref))
	}

	if cfg.DelayMs < 0 {
		return nil, configError(CodeDelayNegative, "delay_ms", nil)
	}

	count := 0
	concurrency := 1
	if needsCount {
		if cfg.RepetitionCount == nil || *cfg.RepetitionCount < 1 {
			return nil, configError(CodeRepetitionsAtLeastOne, "repetitions", nil)
		}
		if cfg.MaxConcurrency == nil || *cfg.MaxConcurrency < 1 {
			return nil, configError(CodeMaxConcurrencyAtLeastOne, "max_concurrency", nil)
		}
		count = *cfg.RepetitionCount
		concurrency = *cfg.MaxConcurrency
	}

	var records []feeder.Record
	if needsInput {
		data := cfg.InputData
		if data.Kind == feeder.InputFile && vars != nil {
			data.Path = vars.ReplaceTemplates(data.Path, vars.EffectiveVariables())
		}
		records, err = feeder.Resolve(data, true)
		if err != nil {
			return nil, inputError(err)
		}
	}

	plan, err := BuildPlan(cfg.Mode, count, records, sample)
	if err != nil {
		return nil, err
	}

	return &Validated{
		Config:         cfg,
		Request:        tmpl.Clone(),
		Records:        records,
		Plan:           plan,
		MaxConcurrency: concurrency,
		Delay:          time.Duration(cfg.DelayMs) * time.Millisecond,
	}, nil
}

func inputError(err error) error {
	switch {
	case errors.Is(err, feeder.ErrFileNotFound):
		return configError(CodeInputDataFileNotFound, "input_data", err)
	case errors.Is(err, feeder.ErrAtLeastOneLine):
		return configError(CodeInputDataAtLeastOneLine, "input_data", err)
	default:
		return configError(CodeInputDataInvalid, "input_data", err)
	}
}
