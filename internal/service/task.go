package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/taskdeck/server-go/internal/errors"
	"github.com/taskdeck/server-go/internal/model"
	"github.com/taskdeck/server-go/internal/repository"
)

const minTaskTitleLength = 7

type TaskService struct {
	taskRepo repository.TaskRepository
}

func NewTaskService(taskRepo repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

func (s *TaskService) List(ctx context.Context, accountID string) ([]model.Task, error) {
	tasks, err := s.taskRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) Add(ctx context.Context, params model.CreateTaskParams) (*model.Task, error) {
	if len(strings.TrimSpace(params.Title)) < minTaskTitleLength {
		return nil, apperrors.InvalidInput("title", fmt.Sprintf("must be at least %d characters", minTaskTitleLength))
	}
	if err := validateCounters(params.Times, params.TimesDone); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	log.Debug().Str("taskId", task.ID).Str("accountId", task.AccountID).Msg("task created")
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, accountID, taskID string, params model.UpdateTaskParams) (*model.Task, error) {
	if params.IsEmpty() {
		return nil, apperrors.ValidationError("Provide at least one field to change")
	}

	task, err := s.findOwned(ctx, accountID, taskID)
	if err != nil {
		return nil, err
	}

	if params.Title != nil && len(strings.TrimSpace(*params.Title)) < minTaskTitleLength {
		return nil, apperrors.InvalidInput("title", fmt.Sprintf("must be at least %d characters", minTaskTitleLength))
	}

	times := task.Times
	if params.Times != nil {
		times = *params.Times
	}
	timesDone := task.TimesDone
	if params.TimesDone != nil {
		timesDone = *params.TimesDone
	}
	if err := validateCounters(times, timesDone); err != nil {
		return nil, err
	}

	updated, err := s.taskRepo.Update(ctx, taskID, params)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if updated == nil {
		return nil, apperrors.NotFound("Task")
	}
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, accountID, taskID string) error {
	if _, err := s.findOwned(ctx, accountID, taskID); err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *TaskService) Clear(ctx context.Context, accountID string) (int64, error) {
	count, err := s.taskRepo.DeleteByAccountID(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("clear tasks: %w", err)
	}
	return count, nil
}

// findOwned answers NotFound for both a missing task and a task belonging to
// another account, so ids cannot be probed across accounts.
func (s *TaskService) findOwned(ctx context.Context, accountID, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if task == nil || task.AccountID != accountID {
		return nil, apperrors.NotFound("Task")
	}
	return task, nil
}

func validateCounters(times, timesDone int) error {
	if times < 1 {
		return apperrors.InvalidInput("times", "must be at least 1")
	}
	if timesDone < 0 {
		return apperrors.InvalidInput("timesDone", "cannot be negative")
	}
	if timesDone > times {
		return apperrors.InvalidInput("timesDone", "cannot exceed times")
	}
	return nil
}
