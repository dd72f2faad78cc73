package dto

import (
	"time"

	"github.com/clinrota/clinrota-api/internal/models"
	"github.com/clinrota/clinrota-api/internal/swap"
)

// SwapRequest proposes exchanging rotation weeks between two people.
type SwapRequest struct {
	SourcePersonID  string `json:"sourcePersonId" validate:"required"`
	SourceWeekStart string `json:"sourceWeekStart" validate:"required,datetime=2006-01-02"`
	TargetPersonID  string `json:"targetPersonId" validate:"required"`
	TargetWeekStart string `json:"targetWeekStart" validate:"required,datetime=2006-01-02"`
	Kind            string `json:"kind" validate:"required,oneof=one_to_one absorb"`
	Reason          string `json:"reason"`
}

// ToProposal converts the transport payload into an engine proposal.
func (r SwapRequest) ToProposal() (swap.Proposal, error) {
	sourceWeek, err := time.Parse("2006-01-02", r.SourceWeekStart)
	if err != nil {
		return swap.Proposal{}, err
	}
	targetWeek, err := time.Parse("2006-01-02", r.TargetWeekStart)
	if err != nil {
		return swap.Proposal{}, err
	}
	return swap.Proposal{
		SourcePersonID:  r.SourcePersonID,
		SourceWeekStart: sourceWeek,
		TargetPersonID:  r.TargetPersonID,
		TargetWeekStart: targetWeek,
		Kind:            models.SwapKind(r.Kind),
		Reason:          r.Reason,
	}, nil
}

// SwapResponse reports the outcome of a swap operation.
type SwapResponse struct {
	Success    bool                   `json:"success"`
	SwapID     string                 `json:"swapId,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Validation *swap.ValidationResult `json:"validation,omitempty"`
}
