package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/atmin009/tutor-frontend/internal/models"
)

// ListParams filters the public course listing.
type ListParams struct {
	Search string
	Limit  int
	Page   int
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	return q
}

// ListCoursesPublic returns the public catalog page for the given filters.
func (c *Client) ListCoursesPublic(ctx context.Context, p ListParams) (*models.CourseList, error) {
	var list models.CourseList
	if err := c.getData(ctx, "/courses/public", p.values(), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CoursePublic returns the public detail of a course by numeric id or slug.
func (c *Client) CoursePublic(ctx context.Context, idOrSlug string) (*models.Course, error) {
	var course models.Course
	path := fmt.Sprintf("/courses/%s/public", url.PathEscape(idOrSlug))
	if err := c.getData(ctx, path, nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// MyCourse returns the learning-player payload for an enrolled course.
func (c *Client) MyCourse(ctx context.Context, courseID int) (*models.CourseProgress, error) {
	var cp models.CourseProgress
	if err := c.getData(ctx, fmt.Sprintf("/me/courses/%d", courseID), nil, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

type enrollmentCheck struct {
	IsEnrolled bool `json:"isEnrolled"`
}

// CheckEnrollment reports whether the caller is enrolled in the course.
func (c *Client) CheckEnrollment(ctx context.Context, courseID int) (bool, error) {
	var data enrollmentCheck
	if err := c.getData(ctx, fmt.Sprintf("/me/check-enrollment/%d", courseID), nil, &data); err != nil {
		return false, err
	}
	return data.IsEnrolled, nil
}

// Enrollments returns the caller's learning dashboard entries.
func (c *Client) Enrollments(ctx context.Context) ([]models.Enrollment, error) {
	var list []models.Enrollment
	if err := c.getData(ctx, "/me/enrollments", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

type progressRequest struct {
	CourseID int `json:"courseId"`
	LessonID int `json:"lessonId"`
}

// RecordProgress marks a lesson as completed for the caller.
func (c *Client) RecordProgress(ctx context.Context, courseID, lessonID int) error {
	return c.postData(ctx, "/me/progress", progressRequest{CourseID: courseID, LessonID: lessonID}, nil)
}
