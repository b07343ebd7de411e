package guide

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pavelanni/studypilot/internal/llm"
	"github.com/pavelanni/studypilot/internal/llm/prompts"
	"github.com/pavelanni/studypilot/internal/model"
)

// GenerativeClient is the slice of the LLM client the generator calls.
type GenerativeClient interface {
	Generate(ctx context.Context, systemPrompt, userPayload string, opts llm.Options) (any, error)
}

// Generator runs the full cycle for one request: gather evidence, build the
// topic scope, call the generative collaborator, normalize its output.
type Generator struct {
	gatherer *Gatherer
	llm      GenerativeClient
}

// NewGenerator wires a Generator from its two collaborators. The LLM client
// may be nil; generation then always produces the deterministic fallback.
func NewGenerator(g *Gatherer, client GenerativeClient) *Generator {
	return &Generator{gatherer: g, llm: client}
}

// Generate produces a study guide document for the request. Grading-system
// failures surface as errors; generative-model failures are absorbed and the
// deterministic fallback document is returned instead, so a valid request
// always yields a well-formed guide unless evidence gathering itself fails.
func (g *Generator) Generate(ctx context.Context, req model.GuideRequest) (*model.GuideDocument, *model.GatherResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, nil, &model.ValidationError{Field: "question", Reason: "must not be empty"}
	}
	if req.Today.IsZero() {
		return nil, nil, &model.ValidationError{Field: "today", Reason: "must be a valid date"}
	}

	gather, err := g.gatherer.LocateAssessment(ctx, req.Question, req.Today, req.CourseHint)
	if err != nil {
		return nil, nil, err
	}

	for i := range req.Materials {
		if req.Materials[i].ConceptHint == "" {
			req.Materials[i].ConceptHint = InferConcept(req.Materials[i].Name)
		}
	}

	topics := g.resolveTopics(req, gather)
	gather.Stage = model.StageGenerating

	fallback := BuildFallback(req, gather, topics)

	candidate := g.callCollaborator(ctx, req, gather)
	doc := Normalize(candidate, fallback)

	gather.Stage = model.StageDone
	return doc, gather, nil
}

// resolveTopics honors a caller-locked scope when one is present, else
// builds the scope from request hints and gathered evidence.
func (g *Generator) resolveTopics(req model.GuideRequest, gather *model.GatherResult) []model.Topic {
	if req.LockedScope != nil {
		if locked := FilterJunkTopics(req.LockedScope.Topics); len(locked) > 0 {
			return locked
		}
	}

	explicit := append([]string{}, req.ExplicitConcepts...)
	for _, m := range req.Materials {
		if m.ConceptHint != "" {
			explicit = append(explicit, m.ConceptHint)
		}
	}

	courseName := ""
	var assignmentTitles []string
	if gather.Course != nil {
		courseName = gather.Course.Name
	}
	for _, a := range gather.Assignments {
		assignmentTitles = append(assignmentTitles, a.Title)
	}
	if gather.Assessment != nil {
		assignmentTitles = append(assignmentTitles, gather.Assessment.Title)
	}

	promptConcepts := PromptConcepts(req.Question)
	return BuildTopics(explicit, req.SelectedUnits, promptConcepts, CurriculumTopics(courseName), ScopeEvidence{
		AssignmentTitles: assignmentTitles,
		UnitLabels:       req.SelectedUnits,
		PromptConcepts:   promptConcepts,
	})
}

// callCollaborator builds the prompt payload and queries the generative
// model. Every failure path logs and returns nil so the caller falls back.
func (g *Generator) callCollaborator(ctx context.Context, req model.GuideRequest, gather *model.GatherResult) any {
	if g.llm == nil {
		return nil
	}

	payload, err := prompts.BuildUserPayload(req, gather, gradeSignals(gather))
	if err != nil {
		slog.Error("building generation payload", "error", err)
		return nil
	}

	candidate, err := g.llm.Generate(ctx, prompts.System(), payload, llm.Options{
		ImageRefs: req.ImageRefs,
		Effort:    "low",
	})
	if err != nil {
		slog.Warn("generative model unavailable, using fallback guide", "error", err)
		return nil
	}
	return candidate
}

// gradeSignals derives the course standing signal passed to the prompt.
func gradeSignals(gather *model.GatherResult) []model.GradeSignal {
	if gather.Course == nil || gather.Course.Score == nil {
		return nil
	}
	score := *gather.Course.Score
	return []model.GradeSignal{{
		CourseID:   gather.Course.ID,
		CourseName: gather.Course.Name,
		Score:      score,
		Trend:      trendFor(score),
	}}
}

// trendFor maps a current score onto a coarse trend label.
func trendFor(score float64) string {
	switch {
	case score < 75:
		return "declining"
	case score < 88:
		return "steady"
	}
	return "improving"
}
