package syncbatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/hris-sync/internal/domain/cell"
	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
	"github.com/cmlabs-hris/hris-sync/internal/domain/permission"
)

type service struct {
	permissions permission.Service
	cells       cell.Repository
	collab      conflict.Service
}

// NewSyncService creates the service that replays queued offline actions.
func NewSyncService(permissions permission.Service, cells cell.Repository, collab conflict.Service) offline.SyncService {
	return &service{
		permissions: permissions,
		cells:       cells,
		collab:      collab,
	}
}

// Apply replays req in order. Rejected actions are reported per action and
// do not stop the batch; infrastructure failures abort it.
func (s *service) Apply(ctx context.Context, userID, userName string, req offline.SyncRequest) (offline.SyncResponse, error) {
	if err := req.Validate(); err != nil {
		return offline.SyncResponse{}, err
	}

	resp := offline.SyncResponse{Results: make([]offline.ActionResult, 0, len(req.Actions))}
	for _, action := range req.Actions {
		result, err := s.applyOne(ctx, userID, userName, action)
		if err != nil {
			return offline.SyncResponse{}, fmt.Errorf("replay action %s: %w", action.ID, err)
		}

		if result.Outcome.Processed() {
			resp.Processed++
		} else {
			resp.Failed++
		}
		resp.Results = append(resp.Results, result)
	}

	slog.Info("sync batch applied",
		"user_id", userID,
		"processed", resp.Processed,
		"failed", resp.Failed,
	)
	return resp, nil
}

func (s *service) applyOne(ctx context.Context, userID, userName string, action offline.QueuedAction) (offline.ActionResult, error) {
	result := offline.ActionResult{ActionID: action.ID}

	if err := action.Validate(); err != nil {
		result.Outcome = offline.OutcomeInvalid
		result.Message = err.Error()
		return result, nil
	}

	canWrite, err := s.permissions.CheckPermission(ctx, userID, permission.ResourceItem, action.ItemID, permission.ActionWrite)
	if errors.Is(err, permission.ErrResourceNotFound) {
		result.Outcome = offline.OutcomeInvalid
		result.Message = "item not found"
		return result, nil
	}
	if err != nil {
		return result, err
	}

	itemID := action.ItemID
	canView, err := s.permissions.CanViewColumn(ctx, userID, action.ColumnID, &itemID)
	if errors.Is(err, permission.ErrResourceNotFound) {
		result.Outcome = offline.OutcomeInvalid
		result.Message = "column not found"
		return result, nil
	}
	if err != nil {
		return result, err
	}
	if !canWrite || !canView {
		result.Outcome = offline.OutcomeForbidden
		result.Message = "no write access to this cell"
		return result, nil
	}

	edit := cell.Edit{
		ItemID:      action.ItemID,
		ColumnID:    action.ColumnID,
		BaseVersion: action.BaseVersion,
		Value:       action.Value,
		UserID:      userID,
		UserName:    userName,
	}
	current, ok, err := s.cells.CompareAndSwap(ctx, edit)
	if errors.Is(err, cell.ErrCellNotFound) {
		result.Outcome = offline.OutcomeInvalid
		result.Message = "base version refers to a cell that does not exist"
		return result, nil
	}
	if err != nil {
		return result, err
	}
	if ok || isReplay(current, edit) {
		result.Outcome = offline.OutcomeApplied
		return result, nil
	}

	rec, err := s.collab.Detect(ctx, conflict.Record{
		ItemID:           action.ItemID,
		ColumnID:         action.ColumnID,
		CurrentValue:     current.Value,
		IncomingValue:    action.Value,
		CurrentVersion:   current.Version,
		CurrentUserID:    current.UpdatedBy,
		IncomingUserID:   userID,
		CurrentUserName:  current.UpdatedByName,
		IncomingUserName: userName,
	})
	if err != nil {
		return result, err
	}

	result.Outcome = offline.OutcomeConflict
	result.ConflictID = &rec.ID
	result.Message = fmt.Sprintf("%s changed this value while you were offline", current.UpdatedByName)
	return result, nil
}

// isReplay reports whether the stored cell already holds this edit, which
// happens when a batch is resent after its response was lost.
func isReplay(current cell.Cell, edit cell.Edit) bool {
	return current.UpdatedBy == edit.UserID && bytes.Equal(current.Value, edit.Value)
}
