package models

import (
	"time"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/validation"
)

type UserReq struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

type TokenResp struct {
	Token string `json:"token"`
}

type LinkResp struct {
	ID          uint64    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Position    *int      `json:"position"`
	IssueID     *uint64   `json:"issue_id"`
	UserID      uint64    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type LinkListResp struct {
	Items    []LinkResp `json:"items"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PerPage  int        `json:"per_page"`
	LastPage int        `json:"last_page"`
}

type LinkMutationResp struct {
	Message string    `json:"message"`
	Link    *LinkResp `json:"link,omitempty"`
}

type IssueResp struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
}

type FieldLimit struct {
	Required  bool `json:"required"`
	MaxLength int  `json:"max_length,omitempty"`
	Min       *int `json:"min,omitempty"`
}

type LinkFormResp struct {
	Issues []IssueResp            `json:"issues"`
	Fields map[string]FieldLimit `json:"fields"`
}

type ValidationErrorResp struct {
	Message string            `json:"message"`
	Errors  validation.Errors `json:"errors"`
}

type ErrorResp struct {
	Message string `json:"message"`
}
