package handler

import (
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

// MemberResponse is one roster entry as embedded in a project
type MemberResponse struct {
	UserID   string             `json:"userId"`
	Role     domain.ProjectRole `json:"role"`
	JoinedAt time.Time          `json:"joinedAt"`
}

// ProjectResponse is the wire form of a project
type ProjectResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	OwnerID     string               `json:"ownerId"`
	Status      domain.ProjectStatus `json:"status"`
	Members     []MemberResponse     `json:"members"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// CommentResponse is the wire form of a task comment
type CommentResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskResponse is the wire form of a task
type TaskResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	ProjectID   string              `json:"projectId"`
	AssignedTo  *string             `json:"assignedTo"`
	CreatedBy   string              `json:"createdBy"`
	DueDate     *time.Time          `json:"dueDate"`
	CompletedAt *time.Time          `json:"completedAt"`
	Comments    []CommentResponse   `json:"comments"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// PageResponse wraps a listing with its pagination block
type PageResponse[T any] struct {
	Data       []T               `json:"data"`
	Pagination domain.Pagination `json:"pagination"`
}

func toProjectResponse(p *domain.Project) ProjectResponse {
	members := make([]MemberResponse, 0, len(p.Members))
	for _, m := range p.Members {
		members = append(members, MemberResponse{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt})
	}
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		Status:      p.Status,
		Members:     members,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toCommentResponse(c domain.Comment) CommentResponse {
	return CommentResponse{ID: c.ID, UserID: c.AuthorID, Text: c.Text, CreatedAt: c.CreatedAt}
}

func toTaskResponse(t *domain.Task) TaskResponse {
	comments := make([]CommentResponse, 0, len(t.Comments))
	for _, c := range t.Comments {
		comments = append(comments, toCommentResponse(c))
	}
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		ProjectID:   t.ProjectID,
		AssignedTo:  t.AssigneeID,
		CreatedBy:   t.CreatorID,
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
		Comments:    comments,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
