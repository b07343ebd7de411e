package guide

import (
	"encoding/json"

	"github.com/pavelanni/studypilot/internal/model"
)

// The normalizer repairs the generative collaborator's JSON against the
// canonical document schema. It is an explicit recursive merge-with-default
// combinator over a declared schema rather than per-field fallback chains:
// adding a field to the schema is the only step needed to keep it from
// being silently dropped.

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindBool
	kindArray
	kindObject
	kindAny
)

type fieldSchema struct {
	kind   fieldKind
	fields map[string]fieldSchema // kindObject
	elem   *fieldSchema           // kindArray element shape
}

func str() fieldSchema  { return fieldSchema{kind: kindString} }
func num() fieldSchema  { return fieldSchema{kind: kindNumber} }
func anyV() fieldSchema { return fieldSchema{kind: kindAny} }

func arr(elem fieldSchema) fieldSchema {
	return fieldSchema{kind: kindArray, elem: &elem}
}

func obj(fields map[string]fieldSchema) fieldSchema {
	return fieldSchema{kind: kindObject, fields: fields}
}

var topicSchema = obj(map[string]fieldSchema{
	"label":         str(),
	"badge":         str(),
	"justification": str(),
	"evidence": arr(obj(map[string]fieldSchema{
		"source": str(),
		"note":   str(),
	})),
})

var guideSchema = obj(map[string]fieldSchema{
	"status": str(),
	"meta": obj(map[string]fieldSchema{
		"course_id":   num(),
		"course_name": str(),
		"assessment": obj(map[string]fieldSchema{
			"id":       num(),
			"title":    str(),
			"due_date": str(),
			"format": obj(map[string]fieldSchema{
				"kind":               str(),
				"time_limit_minutes": num(),
				"allowed_attempts":   num(),
			}),
		}),
		"confidence":  num(),
		"assumptions": arr(str()),
		"sources_used": obj(map[string]fieldSchema{
			"quizzes":       num(),
			"assignments":   num(),
			"modules":       num(),
			"pages":         num(),
			"announcements": num(),
			"files":         num(),
		}),
	}),
	"scope_lock": obj(map[string]fieldSchema{
		"topics":       arr(topicSchema),
		"out_of_scope": arr(str()),
	}),
	"study_guide": obj(map[string]fieldSchema{
		"overview": obj(map[string]fieldSchema{
			"summary":                 str(),
			"estimated_study_minutes": num(),
		}),
		// Section bodies are open variants; element shapes are resolved by
		// the GuideSection decoder.
		"sections": arr(anyV()),
	}),
	"checklist": arr(obj(map[string]fieldSchema{
		"id":         str(),
		"task":       str(),
		"badge":      str(),
		"done_when":  str(),
		"section_id": str(),
	})),
	"tutor_handoff": obj(map[string]fieldSchema{
		"button_label": str(),
		"brief":        str(),
		"context": obj(map[string]fieldSchema{
			"course_name":      str(),
			"assessment_title": str(),
			"due_date":         str(),
			"topics":           arr(str()),
		}),
		"quick_actions": arr(str()),
	}),
	"ui_hints": obj(map[string]fieldSchema{
		"topic_chips":             arr(str()),
		"default_selected_topics": arr(str()),
		"time_budgets": arr(obj(map[string]fieldSchema{
			"topic":   str(),
			"minutes": num(),
		})),
	}),
})

// Normalize merges the collaborator's candidate output over the fallback
// document and repairs the result into a well-formed canonical document.
// It is a pure function of (candidate, fallback): no randomness, no
// external calls, and no field of the canonical schema is ever left unset.
func Normalize(candidate any, fallback *model.GuideDocument) *model.GuideDocument {
	fallbackMap := docToMap(fallback)

	candidateMap, ok := candidate.(map[string]any)
	if !ok {
		return finalize(mapToDoc(fallbackMap), fallback)
	}

	merged := mergeValue(candidateMap, fallbackMap, guideSchema)
	doc := mapToDoc(merged.(map[string]any))
	if doc == nil {
		doc = mapToDoc(fallbackMap)
	}
	return finalize(doc, fallback)
}

// mergeValue prefers the candidate's value when it is present and
// structurally valid for the declared shape, else the fallback's.
func mergeValue(candidate, fallback any, s fieldSchema) any {
	switch s.kind {
	case kindString:
		if v, ok := candidate.(string); ok {
			return v
		}
	case kindNumber:
		if v, ok := candidate.(float64); ok {
			return v
		}
	case kindBool:
		if v, ok := candidate.(bool); ok {
			return v
		}
	case kindAny:
		if candidate != nil {
			return candidate
		}
	case kindArray:
		if items, ok := candidate.([]any); ok {
			return mergeArray(items, *s.elem)
		}
	case kindObject:
		if cm, ok := candidate.(map[string]any); ok {
			fm, _ := fallback.(map[string]any)
			out := make(map[string]any, len(s.fields))
			for name, child := range s.fields {
				out[name] = mergeValue(cm[name], fm[name], child)
			}
			return out
		}
	}
	return fallback
}

// mergeArray sanitizes a candidate array elementwise: elements of the wrong
// top-level type are dropped, object elements are normalized against the
// element schema with zero defaults.
func mergeArray(items []any, elem fieldSchema) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		switch elem.kind {
		case kindAny:
			out = append(out, item)
		case kindString:
			if v, ok := item.(string); ok {
				out = append(out, v)
			}
		case kindNumber:
			if v, ok := item.(float64); ok {
				out = append(out, v)
			}
		case kindObject:
			if v, ok := item.(map[string]any); ok {
				out = append(out, mergeValue(v, nil, elem))
			}
		}
	}
	return out
}

func docToMap(doc *model.GuideDocument) map[string]any {
	raw, err := json.Marshal(doc)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func mapToDoc(m map[string]any) *model.GuideDocument {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var doc model.GuideDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return &doc
}

// finalize applies the post-merge repair passes: badge coercion, topic
// recovery, confidence clamping, chip re-derivation, and slice defaults.
func finalize(doc *model.GuideDocument, fallback *model.GuideDocument) *model.GuideDocument {
	doc.Status = model.StatusReady

	// Topic recovery: never emit an empty scope.
	topics := FilterJunkTopics(doc.ScopeLock.Topics)
	if len(topics) == 0 {
		topics = FilterJunkTopics(fallback.ScopeLock.Topics)
	}
	if topics == nil {
		topics = []model.Topic{}
	}
	for i := range topics {
		if !model.ValidBadge(topics[i].Badge) {
			topics[i].Badge = model.BadgeLikely
		}
		if topics[i].Evidence == nil {
			topics[i].Evidence = []model.Evidence{}
		}
	}
	doc.ScopeLock.Topics = topics

	for i := range doc.Checklist {
		if !model.ValidBadge(doc.Checklist[i].Badge) {
			doc.Checklist[i].Badge = model.BadgeLikely
		}
	}

	if doc.Meta.Confidence < 0 {
		doc.Meta.Confidence = 0
	}
	if doc.Meta.Confidence > 100 {
		doc.Meta.Confidence = 100
	}

	// Chips are always re-derived from the final topic list; whatever the
	// collaborator proposed is ignored.
	chips := make([]string, 0, len(topics))
	for _, t := range topics {
		chips = append(chips, t.Label)
	}
	doc.UIHints.TopicChips = chips
	if len(doc.UIHints.DefaultChips) == 0 {
		n := 3
		if len(chips) < n {
			n = len(chips)
		}
		doc.UIHints.DefaultChips = append([]string{}, chips[:n]...)
	}

	if doc.Meta.Assumptions == nil {
		doc.Meta.Assumptions = []string{}
	}
	if doc.ScopeLock.OutOfScope == nil {
		doc.ScopeLock.OutOfScope = []string{}
	}
	if doc.StudyGuide.Sections == nil {
		doc.StudyGuide.Sections = []model.GuideSection{}
	}
	if doc.Checklist == nil {
		doc.Checklist = []model.ChecklistItem{}
	}
	if doc.TutorHandoff.QuickActions == nil {
		doc.TutorHandoff.QuickActions = []string{}
	}
	if doc.TutorHandoff.Context.Topics == nil {
		doc.TutorHandoff.Context.Topics = []string{}
	}
	if doc.UIHints.TimeBudgets == nil {
		doc.UIHints.TimeBudgets = []model.TimeBudget{}
	}
	return doc
}
