package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vitebski/dbsight/internal/driver"
	"github.com/vitebski/dbsight/internal/manager"
	"github.com/vitebski/dbsight/pkg/models"
)

// describeError turns an error into the message shown to the user.
// Authentication failures and timeouts get their own wording.
func describeError(err error) string {
	var unknown *driver.UnknownDriverError
	switch {
	case driver.IsAuthFailed(err):
		return "authentication failed: check the username and password"
	case driver.IsConnectionTimeout(err):
		return "connection timed out: the server did not answer in time"
	case errors.Is(err, manager.ErrConfigNotFound):
		return err.Error()
	case errors.As(err, &unknown):
		return err.Error()
	}
	return fmt.Sprintf("operation failed: %v", err)
}

// resolveConfig finds a profile by id, id prefix or exact name
func (a *app) resolveConfig(ref string) (models.ConnectionConfig, error) {
	configs := a.manager.GetAllConfigs()

	if id, err := uuid.Parse(ref); err == nil {
		if cfg, ok := a.manager.GetConfigByID(id); ok {
			return cfg, nil
		}
		return models.ConnectionConfig{}, fmt.Errorf("%w: %s", manager.ErrConfigNotFound, ref)
	}

	var matches []models.ConnectionConfig
	for _, c := range configs {
		if c.Name == ref {
			return c, nil
		}
		if strings.HasPrefix(c.ID.String(), strings.ToLower(ref)) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return models.ConnectionConfig{}, fmt.Errorf("%w: %s", manager.ErrConfigNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return models.ConnectionConfig{}, fmt.Errorf("%q matches %d connections, use more of the id", ref, len(matches))
}
