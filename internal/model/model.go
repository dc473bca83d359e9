package model

import (
	"strings"
	"time"
)

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// DisplayName prefers the user's name and falls back to the email.
func (u User) DisplayName() string {
	if n := strings.TrimSpace(u.Name); n != "" {
		return n
	}
	return u.Email
}

type Workspace struct {
	ID             string `json:"id"`
	UserID         int64  `json:"user_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	UniversityName string `json:"university_name,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`

	// Not every backend reports these; a nil IsActive means "active".
	IsActive      *bool  `json:"is_active,omitempty"`
	Status        string `json:"status,omitempty"`
	DeletedAt     string `json:"deleted_at,omitempty"`
	SurveyCount   int    `json:"surveys_count,omitempty"`
	ResponseCount int    `json:"responses_count,omitempty"`
}

// Trashed reports whether the workspace has been moved to the trash.
func (w Workspace) Trashed() bool {
	if w.IsActive != nil && !*w.IsActive {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(w.Status), "deleted")
}

type SurveyStatus string

const (
	SurveyStatusDraft    SurveyStatus = "draft"
	SurveyStatusActive   SurveyStatus = "active"
	SurveyStatusInactive SurveyStatus = "inactive"
)

type Survey struct {
	ID            string       `json:"id"`
	WorkspaceID   string       `json:"workspace_id"`
	WorkspaceName string       `json:"workspace_name,omitempty"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	ScaleMin      int          `json:"scale_min,omitempty"`
	ScaleMax      int          `json:"scale_max,omitempty"`
	MaxQuestions  int          `json:"max_questions,omitempty"`
	Status        SurveyStatus `json:"status"`
	AccessLink    string       `json:"access_link,omitempty"`
	ResponseCount int          `json:"response_count,omitempty"`
	CreatedAt     string       `json:"created_at"`
	UpdatedAt     string       `json:"updated_at"`
}

// ArchivedPage is the payload of the archive listing endpoint.
type ArchivedPage struct {
	Surveys []Survey `json:"surveys"`
	Total   int      `json:"total_count"`
}

const (
	DefaultScaleMax      = 5
	UnknownWorkspaceName = "Unknown workspace"
)

// TrashRow is the display shape of a survey held in the trash or the archive.
type TrashRow struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	WorkspaceID    string `json:"workspace_id,omitempty"`
	WorkspaceName  string `json:"workspace_name"`
	ArchivedAt     string `json:"archived_at"`
	ResponsesCount int    `json:"responses_count"`
	ScaleMax       int    `json:"scale_max"`
}

// NewTrashRow formats a survey for the trash/archive views. workspaceName
// overrides the survey's own workspace_name when non-empty.
func NewTrashRow(s Survey, workspaceName string) TrashRow {
	name := strings.TrimSpace(workspaceName)
	if name == "" {
		name = strings.TrimSpace(s.WorkspaceName)
	}
	if name == "" {
		name = UnknownWorkspaceName
	}
	at := s.UpdatedAt
	if strings.TrimSpace(at) == "" {
		at = s.CreatedAt
	}
	scale := s.ScaleMax
	if scale == 0 {
		scale = DefaultScaleMax
	}
	return TrashRow{
		ID:             s.ID,
		Title:          s.Title,
		Description:    s.Description,
		WorkspaceID:    s.WorkspaceID,
		WorkspaceName:  name,
		ArchivedAt:     at,
		ResponsesCount: s.ResponseCount,
		ScaleMax:       scale,
	}
}

type TrashedWorkspace struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	DeletedAt      string `json:"deleted_at"`
	SurveysCount   int    `json:"surveys_count"`
	ResponsesCount int    `json:"responses_count"`
}

func NewTrashedWorkspace(w Workspace) TrashedWorkspace {
	at := w.DeletedAt
	if strings.TrimSpace(at) == "" {
		at = w.UpdatedAt
	}
	return TrashedWorkspace{
		ID:             w.ID,
		Name:           w.Title,
		Description:    w.Description,
		DeletedAt:      at,
		SurveysCount:   w.SurveyCount,
		ResponsesCount: w.ResponseCount,
	}
}

// RetentionPeriod is how long the backend keeps trashed items before
// deleting them for good.
const RetentionPeriod = 30 * 24 * time.Hour

// PurgeDeadline parses an RFC 3339 (or bare date) deletion timestamp and
// returns when the item will be purged automatically.
func PurgeDeadline(deletedAt string) (time.Time, bool) {
	s := strings.TrimSpace(deletedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Add(RetentionPeriod), true
		}
	}
	return time.Time{}, false
}
