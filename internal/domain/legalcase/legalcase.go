package legalcase

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("case not found")
	ErrHearingNotFound = errors.New("hearing not found")
	ErrNoChanges       = errors.New("no fields to update")
)

const (
	StatusActive    = "active"
	StatusPending   = "pending"
	StatusClosed    = "closed"
	StatusDismissed = "dismissed"

	PriorityMedium = "medium"

	HearingScheduled = "scheduled"
)

type Client struct {
	Name    string `json:"name" bson:"name" binding:"required,min=2,max=120"`
	Contact string `json:"contact,omitempty" bson:"contact,omitempty" binding:"omitempty,max=40"`
	Email   string `json:"email,omitempty" bson:"email,omitempty" binding:"omitempty,email"`
	Address string `json:"address,omitempty" bson:"address,omitempty" binding:"omitempty,max=300"`
}

type OpposingParty struct {
	Name     string `json:"name,omitempty" bson:"name,omitempty" binding:"omitempty,max=120"`
	Advocate string `json:"advocate,omitempty" bson:"advocate,omitempty" binding:"omitempty,max=120"`
	Contact  string `json:"contact,omitempty" bson:"contact,omitempty" binding:"omitempty,max=40"`
}

type Hearing struct {
	ID      string    `json:"id" bson:"id"`
	Date    time.Time `json:"date" bson:"date"`
	Time    string    `json:"time" bson:"time"`
	Court   string    `json:"court" bson:"court"`
	Judge   string    `json:"judge,omitempty" bson:"judge,omitempty"`
	Purpose string    `json:"purpose,omitempty" bson:"purpose,omitempty"`
	Notes   string    `json:"notes,omitempty" bson:"notes,omitempty"`
	Status  string    `json:"status" bson:"status"`
}

// Document references a file stored elsewhere; only its URL is kept.
type Document struct {
	ID         string    `json:"id" bson:"id"`
	Name       string    `json:"name" bson:"name"`
	Type       string    `json:"type" bson:"type"`
	FileURL    string    `json:"fileUrl" bson:"fileUrl"`
	UploadedBy string    `json:"uploadedBy" bson:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt" bson:"uploadedAt"`
}

type Note struct {
	ID        string    `json:"id" bson:"id"`
	Content   string    `json:"content" bson:"content"`
	CreatedBy string    `json:"createdBy" bson:"createdBy"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type Case struct {
	ID            string        `json:"id" bson:"_id"`
	CaseNumber    string        `json:"caseNumber" bson:"caseNumber"`
	Title         string        `json:"title" bson:"title"`
	Description   string        `json:"description,omitempty" bson:"description,omitempty"`
	Client        Client        `json:"client" bson:"client"`
	OpposingParty OpposingParty `json:"opposingParty" bson:"opposingParty"`
	Court         string        `json:"court" bson:"court"`
	Judge         string        `json:"judge,omitempty" bson:"judge,omitempty"`
	CaseType      string        `json:"caseType" bson:"caseType"`
	FilingDate    time.Time     `json:"filingDate" bson:"filingDate"`
	Status        string        `json:"status" bson:"status"`
	Priority      string        `json:"priority" bson:"priority"`
	AssignedTo    []string      `json:"assignedTo" bson:"assignedTo"`
	Hearings      []Hearing     `json:"hearings" bson:"hearings"`
	Documents     []Document    `json:"documents" bson:"documents"`
	Notes         []Note        `json:"notes" bson:"notes"`
	CreatedAt     time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Search   *string
	Status   *string
	CaseType *string
	Limit    int
	Offset   int
}

type CreateCaseRequest struct {
	Title         string        `json:"title" binding:"required,min=3,max=200"`
	Description   string        `json:"description" binding:"omitempty,max=4000"`
	Client        Client        `json:"client"`
	OpposingParty OpposingParty `json:"opposingParty"`
	Court         string        `json:"court" binding:"required,min=2,max=200"`
	Judge         string        `json:"judge" binding:"omitempty,max=120"`
	CaseType      string        `json:"caseType" binding:"required,oneof=criminal civil family commercial writ other"`
	FilingDate    time.Time     `json:"filingDate" binding:"required"`
	Status        string        `json:"status" binding:"omitempty,oneof=active pending closed dismissed"`
	Priority      string        `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	AssignedTo    []string      `json:"assignedTo" binding:"omitempty,dive,uuid"`
}

// UpdateCaseRequest is the allow-list of case fields writable after creation.
// Case number, hearings, documents and notes have their own operations.
type UpdateCaseRequest struct {
	Title         *string        `json:"title" binding:"omitempty,min=3,max=200"`
	Description   *string        `json:"description" binding:"omitempty,max=4000"`
	Client        *Client        `json:"client"`
	OpposingParty *OpposingParty `json:"opposingParty"`
	Court         *string        `json:"court" binding:"omitempty,min=2,max=200"`
	Judge         *string        `json:"judge" binding:"omitempty,max=120"`
	CaseType      *string        `json:"caseType" binding:"omitempty,oneof=criminal civil family commercial writ other"`
	FilingDate    *time.Time     `json:"filingDate"`
	Status        *string        `json:"status" binding:"omitempty,oneof=active pending closed dismissed"`
	Priority      *string        `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	AssignedTo    *[]string      `json:"assignedTo" binding:"omitempty,dive,uuid"`
}

func (r UpdateCaseRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Client == nil && r.OpposingParty == nil &&
		r.Court == nil && r.Judge == nil && r.CaseType == nil && r.FilingDate == nil &&
		r.Status == nil && r.Priority == nil && r.AssignedTo == nil
}

type AddHearingRequest struct {
	Date    time.Time `json:"date" binding:"required"`
	Time    string    `json:"time" binding:"required,max=20"`
	Court   string    `json:"court" binding:"required,min=2,max=200"`
	Judge   string    `json:"judge" binding:"omitempty,max=120"`
	Purpose string    `json:"purpose" binding:"omitempty,max=500"`
	Notes   string    `json:"notes" binding:"omitempty,max=2000"`
	Status  string    `json:"status" binding:"omitempty,oneof=scheduled completed adjourned cancelled"`
}

type UpdateHearingStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=scheduled completed adjourned cancelled"`
}

type AddDocumentRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=200"`
	Type    string `json:"type" binding:"required,oneof=pleading affidavit evidence order misc"`
	FileURL string `json:"fileUrl" binding:"required,url"`
}

type AddNoteRequest struct {
	Content string `json:"content" binding:"required,min=1,max=4000"`
}

func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusPending, StatusClosed, StatusDismissed:
		return true
	}
	return false
}

func ValidCaseType(t string) bool {
	switch t {
	case "criminal", "civil", "family", "commercial", "writ", "other":
		return true
	}
	return false
}
