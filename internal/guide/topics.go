package guide

import (
	"strings"

	"github.com/pavelanni/studypilot/internal/model"
)

const maxTopics = 8

// ScopeEvidence carries the context the builder badges topics against.
type ScopeEvidence struct {
	AssignmentTitles []string
	UnitLabels       []string
	PromptConcepts   []string
}

// BuildTopics converts candidate labels from all sources into a ranked,
// deduplicated, confidence-tagged topic list capped at eight entries.
// Source precedence, highest first: explicit assignment concept hints,
// selected unit labels, concepts extracted from the question, curriculum
// inference from the course name. If every source is filtered away the
// curriculum topics are emitted unfiltered so the generator never receives
// an empty scope.
func BuildTopics(explicit, units, promptConcepts, curriculum []string, ev ScopeEvidence) []model.Topic {
	var candidates []string
	seen := map[string]bool{}
	add := func(labels []string) {
		for _, label := range labels {
			norm := strings.ToLower(strings.TrimSpace(label))
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			candidates = append(candidates, strings.TrimSpace(label))
		}
	}
	add(explicit)
	add(units)
	add(promptConcepts)
	add(curriculum)

	var usable []string
	for _, label := range candidates {
		if IsJunkLabel(label) {
			continue
		}
		usable = append(usable, label)
	}

	// Fallback guarantee: never hand the generator an empty scope.
	if len(usable) == 0 {
		usable = curriculum
	}

	if len(usable) > maxTopics {
		usable = usable[:maxTopics]
	}

	topics := make([]model.Topic, 0, len(usable))
	for _, label := range usable {
		topics = append(topics, badgeTopic(label, explicit, ev))
	}
	return topics
}

// badgeTopic assigns the confidence tier for one label. Confirmed needs
// direct evidence (assignment title or an exact explicit hint); Likely
// needs contextual evidence (unit label or a token shared with extracted
// prompt concepts); everything else may not be on the test.
func badgeTopic(label string, explicit []string, ev ScopeEvidence) model.Topic {
	lower := strings.ToLower(label)

	for _, title := range ev.AssignmentTitles {
		if strings.Contains(strings.ToLower(title), lower) {
			return model.Topic{
				Label:         label,
				Badge:         model.BadgeConfirmed,
				Justification: "Appears in the assignment \"" + title + "\"",
				Evidence: []model.Evidence{
					{Source: model.SourceAssignment, Note: "matched assignment title: " + title},
				},
			}
		}
	}
	for _, hint := range explicit {
		if strings.EqualFold(strings.TrimSpace(hint), label) {
			return model.Topic{
				Label:         label,
				Badge:         model.BadgeConfirmed,
				Justification: "Explicitly listed as an assignment concept",
				Evidence: []model.Evidence{
					{Source: model.SourceAssignment, Note: "explicit concept hint"},
				},
			}
		}
	}

	for _, unit := range ev.UnitLabels {
		if strings.Contains(strings.ToLower(unit), lower) {
			return model.Topic{
				Label:         label,
				Badge:         model.BadgeLikely,
				Justification: "Covered by the selected unit \"" + unit + "\"",
				Evidence: []model.Evidence{
					{Source: model.SourceModule, Note: "matched unit: " + unit},
				},
			}
		}
	}
	labelTokens := TopicTokens(label)
	for _, concept := range ev.PromptConcepts {
		conceptTokens := TopicTokens(concept)
		for _, lt := range labelTokens {
			for _, ct := range conceptTokens {
				if lt == ct {
					return model.Topic{
						Label:         label,
						Badge:         model.BadgeLikely,
						Justification: "Related to \"" + concept + "\" from your question",
						Evidence: []model.Evidence{
							{Source: model.SourceModule, Note: "shared token with question concept: " + concept},
						},
					}
				}
			}
		}
	}

	return model.Topic{
		Label:         label,
		Badge:         model.BadgeMayNot,
		Justification: "Inferred from the typical curriculum; no direct evidence found",
		Evidence: []model.Evidence{
			{Source: model.SourceInference, Note: "curriculum pattern inference"},
		},
	}
}

// FilterJunkTopics drops topics whose labels are empty or junk words.
func FilterJunkTopics(topics []model.Topic) []model.Topic {
	var out []model.Topic
	for _, t := range topics {
		if IsJunkLabel(t.Label) {
			continue
		}
		out = append(out, t)
	}
	return out
}
