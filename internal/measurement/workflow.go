package measurement

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/domain"
)

// DetailValues are the form fields of a measurement detail. Nil fields keep the edited value.
type DetailValues struct {
	MeasurementItemID int64
	CurrentCount      *decimal.Decimal
	Remark            *string
	Attachments       []domain.Attachment
}

// Workflow creates, edits, deletes and reviews measurement details for the controller's
// current selection. Every successful mutation refetches the detail list.
type Workflow struct {
	ctrl *Controller

	mu       sync.Mutex
	formOpen bool
	editing  *domain.MeasurementDetailDTO
}

// NewWorkflow creates a workflow bound to ctrl
func NewWorkflow(ctrl *Controller) *Workflow {
	return &Workflow{ctrl: ctrl}
}

// New opens an empty form
func (w *Workflow) New() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.formOpen = true
	w.editing = nil
}

// Edit opens the form on an existing detail. Approved details are refused.
func (w *Workflow) Edit(detail domain.MeasurementDetailDTO) error {
	if detail.MeasurementStatus == domain.MeasurementStatusApproved {
		return w.refuse(ErrDetailApproved)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.formOpen = true
	w.editing = &detail
	return nil
}

// CloseForm discards the form
func (w *Workflow) CloseForm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.formOpen = false
	w.editing = nil
}

// FormOpen reports whether the form is open
func (w *Workflow) FormOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.formOpen
}

// Editing returns the detail being edited, or nil for a new one
func (w *Workflow) Editing() *domain.MeasurementDetailDTO {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.editing == nil {
		return nil
	}
	d := *w.editing
	return &d
}

func (w *Workflow) refuse(err error) error {
	w.ctrl.notifier.Notify(LevelError, err.Error())
	return err
}

// AddOrUpdate merges values over the edited detail and the current selection, then creates
// the detail when it has no id and updates it otherwise. On success the form closes and the
// list is refetched.
func (w *Workflow) AddOrUpdate(ctx context.Context, values DetailValues) (*domain.MeasurementDetailDTO, error) {
	if !w.ctrl.session.CanWrite() {
		return nil, w.refuse(ErrPermissionDenied)
	}

	projectID, contractID, periodID, item := w.ctrl.selectionKeys()
	if projectID == 0 || contractID == 0 || periodID == 0 {
		return nil, w.refuse(ErrSelectionIncomplete)
	}

	editing := w.Editing()
	if editing != nil && editing.MeasurementStatus == domain.MeasurementStatusApproved {
		return nil, w.refuse(ErrDetailApproved)
	}

	payload := &domain.MeasurementDetailPayload{
		RelatedProjectID:  projectID,
		RelatedContractID: contractID,
		RelatedPeriodID:   periodID,
	}
	if editing != nil {
		payload.ID = editing.ID
		payload.RelatedMeasurementItemID = editing.RelatedMeasurementItemID
		payload.CurrentCount = editing.CurrentCount
		payload.Remark = editing.Remark
		payload.Attachments = editing.Attachments
	}
	if payload.RelatedMeasurementItemID == 0 && item.IsLeaf() {
		payload.RelatedMeasurementItemID = item.ID
	}
	if values.MeasurementItemID != 0 {
		payload.RelatedMeasurementItemID = values.MeasurementItemID
	}
	if values.CurrentCount != nil {
		payload.CurrentCount = *values.CurrentCount
	}
	if values.Remark != nil {
		payload.Remark = *values.Remark
	}
	if values.Attachments != nil {
		payload.Attachments = values.Attachments
	}
	if payload.RelatedMeasurementItemID == 0 {
		return nil, w.refuse(ErrItemRequired)
	}

	var (
		saved *domain.MeasurementDetailDTO
		err   error
	)
	if payload.ID == 0 {
		saved, err = w.ctrl.gateway.CreateMeasurementDetail(ctx, payload)
	} else {
		saved, err = w.ctrl.gateway.UpdateMeasurementDetail(ctx, payload)
	}
	if err != nil {
		return nil, w.ctrl.fail(err)
	}

	w.CloseForm()
	w.ctrl.notifier.Notify(LevelInfo, "Measurement saved")
	if _, err := w.ctrl.FetchMeasurementDetailList(ctx, nil); err != nil {
		return saved, err
	}
	return saved, nil
}

// Delete removes a detail from the current list. Approved details are refused, and so are
// ids outside the list since their status is unknown.
func (w *Workflow) Delete(ctx context.Context, id int64) error {
	if !w.ctrl.session.CanWrite() {
		return w.refuse(ErrPermissionDenied)
	}
	d, ok := w.ctrl.findDetail(id)
	if !ok {
		return w.refuse(ErrDetailNotLoaded)
	}
	if d.MeasurementStatus == domain.MeasurementStatusApproved {
		return w.refuse(ErrDetailApproved)
	}

	if err := w.ctrl.gateway.DeleteMeasurementDetail(ctx, id); err != nil {
		return w.ctrl.fail(err)
	}

	w.ctrl.notifier.Notify(LevelInfo, fmt.Sprintf("Measurement %d deleted", id))
	_, err := w.ctrl.FetchMeasurementDetailList(ctx, nil)
	return err
}

// Review approves or rejects a detail of the current list. Unless re-review is allowed,
// details that are no longer pending are refused without a gateway call.
func (w *Workflow) Review(ctx context.Context, id int64, decision domain.ReviewDecision, comment string) (*domain.MeasurementDetailDTO, error) {
	if !w.ctrl.session.CanReview() {
		return nil, w.refuse(ErrPermissionDenied)
	}
	if decision != domain.ReviewDecisionApprove && decision != domain.ReviewDecisionReject {
		return nil, w.refuse(fmt.Errorf("unknown review decision %q", decision))
	}
	d, ok := w.ctrl.findDetail(id)
	if !ok {
		return nil, w.refuse(ErrDetailNotLoaded)
	}
	if !w.ctrl.opts.AllowReReview && d.MeasurementStatus != domain.MeasurementStatusPending {
		return nil, w.refuse(ErrAlreadyReviewed)
	}

	reviewed, err := w.ctrl.gateway.ReviewMeasurementDetail(ctx, &domain.ReviewMeasurementDetailRequest{
		ID:      id,
		IsPass:  decision == domain.ReviewDecisionApprove,
		Comment: comment,
	})
	if err != nil {
		return nil, w.ctrl.fail(err)
	}

	w.ctrl.notifier.Notify(LevelInfo, fmt.Sprintf("Measurement %d %s", id, decision.Status()))
	if _, err := w.ctrl.FetchMeasurementDetailList(ctx, nil); err != nil {
		return reviewed, err
	}
	return reviewed, nil
}
