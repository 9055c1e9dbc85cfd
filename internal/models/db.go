package models

import (
	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/service"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/validation"
)

const (
	MessageLinkCreated = "Link created"
	MessageLinkUpdated = "Link updated"
	MessageLinkDeleted = "Link deleted"
)

func NewLinkResp(l *db.Link) LinkResp {
	return LinkResp{
		ID:          l.ID,
		URL:         l.URL,
		Title:       l.Title,
		Description: l.Description,
		Position:    l.Position,
		IssueID:     l.IssueID,
		UserID:      l.UserID,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func NewLinkListResp(p *service.Page) LinkListResp {
	items := make([]LinkResp, len(p.Items))
	for i := range p.Items {
		items[i] = NewLinkResp(&p.Items[i])
	}
	return LinkListResp{
		Items:    items,
		Total:    p.Total,
		Page:     p.Page,
		PerPage:  p.PerPage,
		LastPage: p.LastPage,
	}
}

func NewLinkFormResp(issues []db.Issue) LinkFormResp {
	resp := LinkFormResp{
		Issues: make([]IssueResp, len(issues)),
		Fields: map[string]FieldLimit{
			validation.FieldURL:         {Required: true, MaxLength: validation.MaxLength},
			validation.FieldTitle:       {Required: true, MaxLength: validation.MaxLength},
			validation.FieldDescription: {},
			validation.FieldIssueID:     {},
			validation.FieldPosition:    {Min: new(int)},
		},
	}
	for i := range issues {
		resp.Issues[i] = IssueResp{
			ID:    issues[i].ID,
			Title: issues[i].Title,
		}
	}
	return resp
}
