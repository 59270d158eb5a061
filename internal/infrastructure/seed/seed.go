// Package seed loads an initial user set from a YAML file:
//
//	users:
//	  - id: u1
//	    name: Ada
//	    email: ada@example.com
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"users-service/internal/application"
	"users-service/internal/domain"
	"users-service/internal/infrastructure/logx"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrNoUsers = errors.New("seed: file has no users")

type file struct {
	Users []record `yaml:"users"`
}

type record struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

func Load(path string) ([]domain.User, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) ([]domain.User, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(f.Users) == 0 {
		return nil, ErrNoUsers
	}
	out := make([]domain.User, 0, len(f.Users))
	for _, r := range f.Users {
		out = append(out, domain.User{ID: r.ID, Name: r.Name, Email: r.Email})
	}
	return out, nil
}

// Apply saves users in one transaction. Every record needs an id; if any
// record is invalid nothing is written.
func Apply(ctx context.Context, uow application.UnitOfWork, users []domain.User, now time.Time) error {
	err := uow.Do(ctx, func(context.Context) error {
		for i, in := range users {
			u, err := domain.NormalizeUser(in)
			if err != nil {
				return fmt.Errorf("seed record %d: %w", i, err)
			}
			if u.ID == "" {
				return fmt.Errorf("seed record %d: %w: id is required", i, domain.ErrInvalidUser)
			}
			u.CreatedAt = now
			if err := uow.Save(u); err != nil {
				return fmt.Errorf("seed record %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logx.L().Info("seed.applied", zap.Int("users", len(users)))
	return nil
}
