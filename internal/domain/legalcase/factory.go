package legalcase

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FormatCaseNumber renders a yearly sequence number as CR/0001/2026.
func FormatCaseNumber(seq int64, year int) string {
	return fmt.Sprintf("CR/%04d/%d", seq, year)
}

func NewFromCreateRequest(req CreateCaseRequest, caseNumber string, now time.Time) Case {
	status := req.Status
	if status == "" {
		status = StatusActive
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	assigned := req.AssignedTo
	if assigned == nil {
		assigned = []string{}
	}

	return Case{
		ID:            uuid.NewString(),
		CaseNumber:    caseNumber,
		Title:         req.Title,
		Description:   req.Description,
		Client:        req.Client,
		OpposingParty: req.OpposingParty,
		Court:         req.Court,
		Judge:         req.Judge,
		CaseType:      req.CaseType,
		FilingDate:    req.FilingDate.UTC(),
		Status:        status,
		Priority:      priority,
		AssignedTo:    assigned,
		Hearings:      []Hearing{},
		Documents:     []Document{},
		Notes:         []Note{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func NewHearing(req AddHearingRequest) Hearing {
	status := req.Status
	if status == "" {
		status = HearingScheduled
	}

	return Hearing{
		ID:      uuid.NewString(),
		Date:    req.Date.UTC(),
		Time:    req.Time,
		Court:   req.Court,
		Judge:   req.Judge,
		Purpose: req.Purpose,
		Notes:   req.Notes,
		Status:  status,
	}
}

func NewDocument(req AddDocumentRequest, uploadedBy string, now time.Time) Document {
	return Document{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Type:       req.Type,
		FileURL:    req.FileURL,
		UploadedBy: uploadedBy,
		UploadedAt: now,
	}
}

func NewNote(req AddNoteRequest, createdBy string, now time.Time) Note {
	return Note{
		ID:        uuid.NewString(),
		Content:   req.Content,
		CreatedBy: createdBy,
		CreatedAt: now,
	}
}

// Apply copies the non-nil fields of an update onto c.
func (r UpdateCaseRequest) Apply(c *Case) {
	if r.Title != nil {
		c.Title = *r.Title
	}
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.Client != nil {
		c.Client = *r.Client
	}
	if r.OpposingParty != nil {
		c.OpposingParty = *r.OpposingParty
	}
	if r.Court != nil {
		c.Court = *r.Court
	}
	if r.Judge != nil {
		c.Judge = *r.Judge
	}
	if r.CaseType != nil {
		c.CaseType = *r.CaseType
	}
	if r.FilingDate != nil {
		c.FilingDate = r.FilingDate.UTC()
	}
	if r.Status != nil {
		c.Status = *r.Status
	}
	if r.Priority != nil {
		c.Priority = *r.Priority
	}
	if r.AssignedTo != nil {
		c.AssignedTo = append([]string{}, (*r.AssignedTo)...)
	}
}
