package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pavelanni/studypilot/internal/model"
)

// Client talks to a Canvas-style grading-system REST API. It paginates
// sequentially: each page's continuation link is fully resolved before the
// next page is requested.
type Client struct {
	http    *resty.Client
	perPage int
}

// New creates a grading-system client for the given base URL and API token.
func New(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
	return &Client{http: c, perPage: 50}
}

// getPaginated fetches every page of a list endpoint, decoding each page
// into a slice of T. A non-2xx response or transport failure aborts the
// whole listing with a single upstream error.
func getPaginated[T any](ctx context.Context, c *Client, path string, params map[string]string) ([]T, error) {
	var all []T
	next := path
	query := params
	if query == nil {
		query = map[string]string{}
	}
	for next != "" {
		req := c.http.R().SetContext(ctx)
		if query != nil {
			req.SetQueryParams(query).
				SetQueryParam("per_page", fmt.Sprintf("%d", c.perPage))
		}
		resp, err := req.Get(next)
		if err != nil {
			return nil, &model.UpstreamError{Op: "GET " + path, Err: err}
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, &model.UpstreamError{
				Op:  "GET " + path,
				Err: fmt.Errorf("status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())),
			}
		}
		var page []T
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return nil, &model.UpstreamError{Op: "GET " + path, Err: fmt.Errorf("decode page: %w", err)}
		}
		all = append(all, page...)

		next = nextLink(resp.Header().Get("Link"))
		query = nil // the next link already carries its query string
	}
	return all, nil
}

// nextLink extracts the rel="next" URL from an RFC 5988 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		url := strings.Trim(strings.TrimSpace(segs[0]), "<>")
		for _, attr := range segs[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return url
			}
		}
	}
	return ""
}

// ListCourses returns the student's active courses as snapshots.
func (c *Client) ListCourses(ctx context.Context, search string) ([]model.CourseSnapshot, error) {
	params := map[string]string{
		"enrollment_state": "active",
		"include[]":        "total_scores",
	}
	if search != "" {
		params["search_term"] = search
	}
	courses, err := getPaginated[Course](ctx, c, "/api/v1/courses", params)
	if err != nil {
		return nil, err
	}
	snaps := make([]model.CourseSnapshot, 0, len(courses))
	for _, co := range courses {
		snap := model.CourseSnapshot{ID: co.ID, Name: co.Name, Code: co.CourseCode}
		if len(co.Enrollments) > 0 {
			snap.Score = co.Enrollments[0].ComputedCurrentScore
			snap.Grade = co.Enrollments[0].ComputedCurrentGrade
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// ListAssignments returns a course's assignments with submission data.
func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]model.AssignmentSnapshot, error) {
	path := fmt.Sprintf("/api/v1/courses/%d/assignments", courseID)
	assignments, err := getPaginated[Assignment](ctx, c, path, map[string]string{"include[]": "submission"})
	if err != nil {
		return nil, err
	}
	snaps := make([]model.AssignmentSnapshot, 0, len(assignments))
	for _, a := range assignments {
		snap := model.AssignmentSnapshot{
			ID:             a.ID,
			CourseID:       courseID,
			Title:          a.Name,
			DueAt:          a.DueAt,
			PointsPossible: a.PointsPossible,
			WorkflowState:  a.WorkflowState,
		}
		if a.Submission != nil {
			snap.Score = a.Submission.Score
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// ListQuizzes returns a course's quizzes.
func (c *Client) ListQuizzes(ctx context.Context, courseID int64) ([]Quiz, error) {
	path := fmt.Sprintf("/api/v1/courses/%d/quizzes", courseID)
	return getPaginated[Quiz](ctx, c, path, nil)
}

// ListModules returns a course's modules.
func (c *Client) ListModules(ctx context.Context, courseID int64) ([]Module, error) {
	path := fmt.Sprintf("/api/v1/courses/%d/modules", courseID)
	return getPaginated[Module](ctx, c, path, nil)
}

// ListModuleItems returns the items of one module.
func (c *Client) ListModuleItems(ctx context.Context, courseID, moduleID int64) ([]ModuleItem, error) {
	path := fmt.Sprintf("/api/v1/courses/%d/modules/%d/items", courseID, moduleID)
	return getPaginated[ModuleItem](ctx, c, path, nil)
}

// ListAnnouncements returns course announcements inside the given window.
func (c *Client) ListAnnouncements(ctx context.Context, courseID int64, from, to time.Time) ([]Announcement, error) {
	params := map[string]string{
		"context_codes[]": fmt.Sprintf("course_%d", courseID),
		"start_date":      from.Format("2006-01-02"),
		"end_date":        to.Format("2006-01-02"),
	}
	return getPaginated[Announcement](ctx, c, "/api/v1/announcements", params)
}

// ListPages returns a course's wiki pages.
func (c *Client) ListPages(ctx context.Context, courseID int64) ([]Page, error) {
	path := fmt.Sprintf("/api/v1/courses/%d/pages", courseID)
	return getPaginated[Page](ctx, c, path, nil)
}

// ListFiles returns a course's files.
func (c *Client) ListFiles(ctx context.Context, courseID int64) ([]File, error) {
	path := fmt.Sprintf("/api/v1/courses/%d/files", courseID)
	return getPaginated[File](ctx, c, path, nil)
}
