package service

import (
	"github.com/dom/task-manager/internal/config"
	"github.com/dom/task-manager/internal/repository"
)

type Services struct {
	Auth *AuthService
	Task *TaskService
}

func NewServices(repos *repository.Repositories, cfg *config.Config) *Services {
	return &Services{
		Auth: NewAuthService(repos.User, repos.Task, cfg),
		Task: NewTaskService(repos.Task),
	}
}
