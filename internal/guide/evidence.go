package guide

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/studypilot/internal/canvas"
	"github.com/pavelanni/studypilot/internal/model"
)

const (
	lookaheadDays       = 10
	maxContextItems     = 12
	maxWeakSignals      = 5
	maxUserQuestions    = 2
	weakSignalThreshold = 80.0
)

// CanvasClient is the slice of the grading-system API the gatherer reads.
type CanvasClient interface {
	ListCourses(ctx context.Context, search string) ([]model.CourseSnapshot, error)
	ListAssignments(ctx context.Context, courseID int64) ([]model.AssignmentSnapshot, error)
	ListQuizzes(ctx context.Context, courseID int64) ([]canvas.Quiz, error)
	ListModules(ctx context.Context, courseID int64) ([]canvas.Module, error)
	ListModuleItems(ctx context.Context, courseID, moduleID int64) ([]canvas.ModuleItem, error)
	ListAnnouncements(ctx context.Context, courseID int64, from, to time.Time) ([]canvas.Announcement, error)
	ListPages(ctx context.Context, courseID int64) ([]canvas.Page, error)
	ListFiles(ctx context.Context, courseID int64) ([]canvas.File, error)
}

// Gatherer identifies the most likely course and upcoming assessment for a
// free-text question and collects supporting evidence around it.
type Gatherer struct {
	canvas CanvasClient
}

// NewGatherer creates a Gatherer over the given grading-system client.
func NewGatherer(c CanvasClient) *Gatherer {
	return &Gatherer{canvas: c}
}

// LocateAssessment ranks the student's active courses and upcoming
// assessments against the question's topic tokens. It never blocks on thin
// evidence: a best-effort result with ready_to_generate=false and up to two
// clarifying questions is returned instead.
func (g *Gatherer) LocateAssessment(ctx context.Context, question string, today time.Time, courseHint int64) (*model.GatherResult, error) {
	tokens := TopicTokens(question)

	courses, err := g.canvas.ListCourses(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return &model.GatherResult{
			Stage:         model.StageScopeAmbiguous,
			Uncertainties: []string{"no active courses found for this account"},
			UserQuestions: []string{"Which course is this quiz or test for?"},
		}, nil
	}

	course := pickCourse(courses, tokens, courseHint)

	windowEnd := today.AddDate(0, 0, lookaheadDays)

	// Independent fetches for the chosen course fan out as one batch; any
	// failure fails the batch as a unit.
	var (
		quizzes       []canvas.Quiz
		assignments   []model.AssignmentSnapshot
		modules       []canvas.Module
		announcements []canvas.Announcement
		pages         []canvas.Page
		files         []canvas.File
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		quizzes, err = g.canvas.ListQuizzes(egCtx, course.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		assignments, err = g.canvas.ListAssignments(egCtx, course.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		modules, err = g.canvas.ListModules(egCtx, course.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		announcements, err = g.canvas.ListAnnouncements(egCtx, course.ID, today, windowEnd)
		return err
	})
	eg.Go(func() error {
		var err error
		pages, err = g.canvas.ListPages(egCtx, course.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		files, err = g.canvas.ListFiles(egCtx, course.ID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	assessment := pickQuiz(quizzes, tokens, today, windowEnd, course.ID)
	if assessment == nil {
		assessment = pickAssignment(assignments, tokens, today, windowEnd)
	}

	result := &model.GatherResult{
		Course:      &course,
		Assessment:  assessment,
		Assignments: assignments,
		WeakSignals: weakSignals(assignments),
	}

	filterTokens := append(append([]string{}, tokens...), reviewTokens...)
	materials, err := g.gatherMaterials(ctx, course.ID, modules, announcements, pages, files, tokens, filterTokens)
	if err != nil {
		return nil, err
	}
	result.Materials = materials

	recordUncertainties(result)
	if result.Assessment != nil {
		result.Stage = model.StageScopeReady
		result.ReadyToGenerate = true
	} else {
		result.Stage = model.StageScopeAmbiguous
	}
	return result, nil
}

// pickCourse resolves the hint if possible, else ranks courses by topic
// token occurrences in name+code. Ties keep the original fetch order.
func pickCourse(courses []model.CourseSnapshot, tokens []string, hint int64) model.CourseSnapshot {
	if hint != 0 {
		for _, c := range courses {
			if c.ID == hint {
				return c
			}
		}
	}
	best := courses[0]
	bestScore := tokenMatchCount(best.Name+" "+best.Code, tokens)
	for _, c := range courses[1:] {
		if score := tokenMatchCount(c.Name+" "+c.Code, tokens); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// dueOnWeekday reports whether t falls inside [from, to] on a weekday.
func dueOnWeekday(t *time.Time, from, to time.Time) bool {
	if t == nil {
		return false
	}
	if t.Before(from) || t.After(to) {
		return false
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// pickQuiz ranks weekday-due quizzes inside the window by
// 10*tokenMatchCount - daysFromToday and returns the top one.
func pickQuiz(quizzes []canvas.Quiz, tokens []string, today, windowEnd time.Time, courseID int64) *model.AssessmentCandidate {
	var best *canvas.Quiz
	bestRank := 0
	for i := range quizzes {
		q := &quizzes[i]
		if !dueOnWeekday(q.DueAt, today, windowEnd) {
			continue
		}
		daysOut := int(q.DueAt.Sub(today).Hours() / 24)
		rank := 10*tokenMatchCount(q.Title, tokens) - daysOut
		if best == nil || rank > bestRank {
			best, bestRank = q, rank
		}
	}
	if best == nil {
		return nil
	}
	return &model.AssessmentCandidate{
		Kind:            model.AssessmentQuiz,
		ID:              best.ID,
		CourseID:        courseID,
		Title:           best.Title,
		DueAt:           best.DueAt,
		Description:     best.Description,
		TimeLimitMin:    best.TimeLimit,
		AllowedAttempts: best.AllowedAttempts,
	}
}

// pickAssignment ranks weekday-due assignments inside the window by token
// match count alone.
func pickAssignment(assignments []model.AssignmentSnapshot, tokens []string, today, windowEnd time.Time) *model.AssessmentCandidate {
	var best *model.AssignmentSnapshot
	bestScore := 0
	for i := range assignments {
		a := &assignments[i]
		if !dueOnWeekday(a.DueAt, today, windowEnd) {
			continue
		}
		if score := tokenMatchCount(a.Title, tokens); best == nil || score > bestScore {
			best, bestScore = a, score
		}
	}
	if best == nil {
		return nil
	}
	return &model.AssessmentCandidate{
		Kind:     model.AssessmentAssignment,
		ID:       best.ID,
		CourseID: best.CourseID,
		Title:    best.Title,
		DueAt:    best.DueAt,
	}
}

// weakSignals extracts assignments scored below 80%, ascending by
// percentage, capped at five.
func weakSignals(assignments []model.AssignmentSnapshot) []model.WeakSignal {
	var signals []model.WeakSignal
	for _, a := range assignments {
		if a.Score == nil || a.PointsPossible == nil || *a.PointsPossible <= 0 {
			continue
		}
		pct := *a.Score / *a.PointsPossible * 100
		if pct >= weakSignalThreshold {
			continue
		}
		signals = append(signals, model.WeakSignal{
			AssignmentID: a.ID,
			Title:        a.Title,
			Percent:      pct,
		})
	}
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].Percent < signals[j].Percent })
	if len(signals) > maxWeakSignals {
		signals = signals[:maxWeakSignals]
	}
	return signals
}

// gatherMaterials collects secondary evidence: the best-matching module and
// its items, plus announcements, pages, and files filtered by token
// overlap. Every category is capped at the generation-context limit.
func (g *Gatherer) gatherMaterials(ctx context.Context, courseID int64, modules []canvas.Module, announcements []canvas.Announcement, pages []canvas.Page, files []canvas.File, topicTokens, filterTokens []string) (model.Materials, error) {
	var m model.Materials

	var bestModule *canvas.Module
	bestScore := 0
	for i := range modules {
		if score := tokenMatchCount(modules[i].Name, topicTokens); score > bestScore {
			bestModule, bestScore = &modules[i], score
		}
	}
	if bestModule != nil {
		m.ModuleName = bestModule.Name
		items, err := g.canvas.ListModuleItems(ctx, courseID, bestModule.ID)
		if err != nil {
			return model.Materials{}, err
		}
		for _, item := range items {
			if len(m.ModuleItems) >= maxContextItems {
				break
			}
			if matchesAny(item.Title, filterTokens) {
				m.ModuleItems = append(m.ModuleItems, item.Title)
			}
		}
	}

	for _, a := range announcements {
		if len(m.Announcements) >= maxContextItems {
			break
		}
		if matchesAny(a.Title, filterTokens) {
			m.Announcements = append(m.Announcements, a.Title)
		}
	}
	for _, p := range pages {
		if len(m.Pages) >= maxContextItems {
			break
		}
		if matchesAny(p.Title, filterTokens) {
			m.Pages = append(m.Pages, p.Title)
		}
	}
	for _, f := range files {
		if len(m.Files) >= maxContextItems {
			break
		}
		if matchesAny(f.DisplayName, filterTokens) {
			m.Files = append(m.Files, f.DisplayName)
		}
	}
	return m, nil
}

// recordUncertainties fills uncertainties and at most two clarifying
// questions when the evidence is thin.
func recordUncertainties(r *model.GatherResult) {
	addQuestion := func(q string) {
		if len(r.UserQuestions) < maxUserQuestions {
			r.UserQuestions = append(r.UserQuestions, q)
		}
	}
	if r.Assessment == nil {
		r.Uncertainties = append(r.Uncertainties,
			fmt.Sprintf("no quiz or assignment due on a weekday within the next %d days", lookaheadDays))
		addQuestion("Which quiz or assignment are you studying for, and when is it due?")
		addQuestion("Which topics or units should the study guide cover?")
		return
	}
	if r.Assessment.Kind == model.AssessmentQuiz {
		if r.Assessment.TimeLimitMin == nil {
			r.Uncertainties = append(r.Uncertainties, "quiz time limit is unknown")
			addQuestion("Is the quiz timed, and if so, how long do you get?")
		}
		if r.Assessment.AllowedAttempts == nil {
			r.Uncertainties = append(r.Uncertainties, "quiz attempt limit is unknown")
			addQuestion("How many attempts does the quiz allow?")
		}
	}
}
