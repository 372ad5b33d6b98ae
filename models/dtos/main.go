package dtos

import (
	"time"

	"gohan/variantstore/models/indexes"
)

// WriteResult summarizes one bulk operation. NonInsertedVariants counts the
// records rejected in phase 1 that phase 2 did not merge either, i.e.
// replays of a file already loaded for the variant.
type WriteResult struct {
	NewVariants         int64         `json:"newVariants"`
	UpdatedVariants     int64         `json:"updatedVariants"`
	SkippedVariants     int64         `json:"skippedVariants"`
	NonInsertedVariants int64         `json:"nonInsertedVariants"`
	DeletedVariants     int64         `json:"deletedVariants,omitempty"`
	Time                time.Duration `json:"time"`
}

func (w *WriteResult) Add(other WriteResult) {
	w.NewVariants += other.NewVariants
	w.UpdatedVariants += other.UpdatedVariants
	w.SkippedVariants += other.SkippedVariants
	w.NonInsertedVariants += other.NonInsertedVariants
	w.DeletedVariants += other.DeletedVariants
	w.Time += other.Time
}

// QueryResult is a bounded fetch. NumTotalResults is -1 when the count was
// skipped.
type QueryResult struct {
	Results         []*indexes.Variant `json:"results"`
	NumResults      int                `json:"numResults"`
	NumTotalResults int64              `json:"numTotalResults"`
	Time            time.Duration      `json:"time"`
	Warnings        []string           `json:"warnings,omitempty"`
}

type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type VariantsResponseDTO struct {
	Status  int          `json:"status"`
	Message string       `json:"message"`
	Data    *QueryResult `json:"data,omitempty"`
}

type VariantsCountResponseDTO struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

type VariantsOverviewResponseDTO map[string]interface{}

// -- service info (GA4GH service-info, plus the storage in use)

type ServiceInfoDTO struct {
	Id           string                 `json:"id"`
	Name         string                 `json:"name"`
	Type         ServiceTypeDTO         `json:"type"`
	Description  string                 `json:"description"`
	Organization ServiceOrganizationDTO `json:"organization"`
	ContactUrl   string                 `json:"contactUrl"`
	Version      string                 `json:"version"`
	Storage      ServiceStorageDTO      `json:"storage"`
}

type ServiceTypeDTO struct {
	Group    string `json:"group"`
	Artifact string `json:"artifact"`
	Version  string `json:"version"`
}

type ServiceOrganizationDTO struct {
	Name string `json:"name"`
	Url  string `json:"url"`
}

// ServiceStorageDTO names the backend and the studies holding variants
type ServiceStorageDTO struct {
	Backend string `json:"backend"`
	Studies []int  `json:"studies"`
}

// -- errors

type GeneralErrorResponseDto struct {
	Code      int            `json:"code"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Errors    []GeneralError `json:"errors"`
}

type GeneralError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
