package ingest

import (
	"time"

	"gohan/variantstore/models/dtos"

	"github.com/google/uuid"
)

type State string

const (
	Queued  State = "Queued"
	Running State = "Running"
	Done    State = "Done"
	Error   State = "Error"
)

type IngestRequest struct {
	Id        uuid.UUID        `json:"id"`
	Filename  string           `json:"filename"`
	Study     string           `json:"study"`
	FileId    int              `json:"fileId"`
	State     State            `json:"state"`
	Message   string           `json:"message"`
	Result    dtos.WriteResult `json:"result"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type IngestResponseDTO struct {
	Id       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	State    State     `json:"state"`
	Message  string    `json:"message"`
}
