package models

import (
	"errors"
	"testing"

	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
)

func validAuditInput() *NewStoreAudit {
	return &NewStoreAudit{
		StoreId: 1,
		Items: []*NewStoreAuditItem{
			{Category: ChecklistCategoryCameras, Compliant: utils.NewTrue()},
			{Category: ChecklistCategoryCleanliness, Compliant: utils.NewTrue()},
		},
	}
}

func TestNewStoreAuditValidateAccepts(t *testing.T) {
	if err := validAuditInput().Validate(); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestNewStoreAuditValidateRejectsUnknownCategory(t *testing.T) {
	input := validAuditInput()
	input.Items[0].Category = "escalators"
	var verr *ValidationError
	if err := input.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown category, got %v", err)
	}
}

func TestNewStoreAuditValidateRejectsDuplicateCategory(t *testing.T) {
	input := validAuditInput()
	input.Items[1].Category = ChecklistCategoryCameras
	var verr *ValidationError
	if err := input.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for duplicate category, got %v", err)
	}
}

func TestNewStoreAuditValidateRecordingModeRules(t *testing.T) {
	// Recording mode on a non-camera item is rejected.
	input := validAuditInput()
	input.Items[1].Compliant = utils.NewFalse()
	input.Items[1].RecordingMode = RecordingModeMotion
	var verr *ValidationError
	if err := input.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for recording mode on %s, got %v", input.Items[1].Category, err)
	}

	// Recording mode on a compliant camera item is rejected.
	input = validAuditInput()
	input.Items[0].RecordingMode = RecordingModeContinuous
	if err := input.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for recording mode on compliant cameras, got %v", err)
	}

	// Non-compliant cameras with a recording mode is the one valid combination.
	input = validAuditInput()
	input.Items[0].Compliant = utils.NewFalse()
	input.Items[0].RecordingMode = RecordingModeMotion
	if err := input.Validate(); err != nil {
		t.Fatalf("expected valid non-compliant camera item, got %v", err)
	}

	// Bogus recording mode value.
	input = validAuditInput()
	input.Items[0].Compliant = utils.NewFalse()
	input.Items[0].RecordingMode = "timelapse"
	if err := input.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for invalid recording mode, got %v", err)
	}
}

func TestNewStoreAuditHasIrregularities(t *testing.T) {
	input := validAuditInput()
	if input.HasIrregularities() {
		t.Fatalf("all compliant: expected no irregularities")
	}
	input.Items[1].Compliant = utils.NewFalse()
	if !input.HasIrregularities() {
		t.Fatalf("expected irregularities with a non-compliant item")
	}
}
