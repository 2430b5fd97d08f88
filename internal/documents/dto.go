package documents

import (
	"time"

	"filing-backend/internal/uploadlogs"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID  string          `json:"documentId"`
	FileName    string          `json:"fileName"`
	ContentType string          `json:"contentType,omitempty"`
	SizeBytes   int64           `json:"sizeBytes"`
	AccountID   string          `json:"accountId,omitempty"`
	Status      Status          `json:"status"`
	Enabled     bool            `json:"enabled"`
	Filing      *StorageLinkage `json:"filing,omitempty"`
	UploadedAt  time.Time       `json:"uploadedAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toResponse(doc Document) DocumentResponse {
	resp := DocumentResponse{
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		Status:      doc.Status,
		Enabled:     doc.Enabled,
		UploadedAt:  doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if doc.Metadata != nil {
		resp.AccountID = doc.Metadata.AccountID
		resp.Filing = doc.Metadata.ZohoData
	}
	return resp
}

// LogResponse is one filing attempt.
type LogResponse struct {
	ID            string            `json:"id"`
	Status        uploadlogs.Status `json:"status"`
	SuggestedPath *string           `json:"suggestedPath"`
	Category      *string           `json:"category"`
	Confidence    *float64          `json:"confidence"`
	Reasoning     *string           `json:"reasoning"`
	Error         *string           `json:"error"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func toLogResponse(l uploadlogs.Log) LogResponse {
	return LogResponse{
		ID:            l.ID,
		Status:        l.Status,
		SuggestedPath: l.SuggestedPath,
		Category:      l.Category,
		Confidence:    l.Confidence,
		Reasoning:     l.Reasoning,
		Error:         l.ErrorMessage,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}
