package store

import (
	"context"
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Permissions []string `yaml:"permissions"`
	Roles       []struct {
		Name        string   `yaml:"name"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"roles"`
	Users []struct {
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		Roles    []string `yaml:"roles"`
	} `yaml:"users"`
}

// SeedFromFile loads permissions, roles and users from a YAML file.
// Existing entities are left alone, so seeding is idempotent and never
// resets a changed password.
func (s *Store) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return err
	}
	for _, perm := range sf.Permissions {
		if perm == "" {
			continue
		}
		if err := s.CreatePermission(ctx, perm); err != nil {
			return err
		}
	}
	for _, role := range sf.Roles {
		if role.Name == "" {
			continue
		}
		if _, err := s.CreateRole(ctx, role.Name, role.Permissions); err != nil {
			return err
		}
	}
	for _, u := range sf.Users {
		if u.Username == "" || u.Password == "" {
			continue
		}
		if _, err := s.GetByUsername(ctx, u.Username); err == nil {
			continue
		} else if !errors.Is(err, ErrUserNotFound) {
			return err
		}
		if _, err := s.CreateUser(ctx, u.Username, u.Password, u.Roles); err != nil {
			return err
		}
	}
	return nil
}
