// Package handlers exposes the back-office REST endpoints. Controllers are
// thin: they bind and validate the request, call into the domain services
// and shape the response.
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mercantil/demote-service/internal/database"
	"github.com/mercantil/demote-service/internal/ledger"
	"github.com/mercantil/demote-service/internal/types"
	"github.com/mercantil/demote-service/internal/validation"
)

// DemoteReader is the read side of the persistence boundary the handlers
// query through. Satisfied by *database.Store.
type DemoteReader interface {
	GetDemotes(ctx context.Context, f database.DemoteFilter) ([]types.LineItem, error)
	GetConditionRules(ctx context.Context, f database.RuleFilter) ([]types.ConditionRule, error)
}

// BatchPoster runs the two-phase demote write. Satisfied by *ledger.Poster.
type BatchPoster interface {
	Post(ctx context.Context, batch ledger.Batch) (*ledger.BatchResult, error)
}

// RuleWriter validates and persists condition rules and applications.
// Satisfied by *rules.Service.
type RuleWriter interface {
	Save(ctx context.Context, rule types.ConditionRule, isUpdate bool) (*validation.Result, error)
	SaveApplication(ctx context.Context, app types.RuleApplication, isUpdate bool) (*validation.Result, error)
}

// Service instances wired at startup.
var (
	demoteReader DemoteReader
	batchPoster  BatchPoster
	ruleWriter   RuleWriter
)

// InitServices wires the handler package to its collaborators.
func InitServices(reader DemoteReader, poster BatchPoster, writer RuleWriter) {
	demoteReader = reader
	batchPoster = poster
	ruleWriter = writer
}

// ResultDTO is the wire shape of a validation result.
type ResultDTO struct {
	Valid    bool                 `json:"valid"`
	Errors   []validation.Message `json:"errors,omitempty"`
	Warnings []validation.Message `json:"warnings,omitempty"`
	Value    any                  `json:"value,omitempty"`
}

func toResultDTO(r *validation.Result) ResultDTO {
	return ResultDTO{
		Valid:    r.IsValid(),
		Errors:   r.Errors(),
		Warnings: r.Warnings(),
		Value:    r.Value,
	}
}

func toResultDTOs(results []*validation.Result) []ResultDTO {
	out := make([]ResultDTO, 0, len(results))
	for _, r := range results {
		out = append(out, toResultDTO(r))
	}
	return out
}

// RegisterValidators installs custom binding validations on gin's
// validator engine. Must run before the router starts serving.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	}
}
