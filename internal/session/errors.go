package session

import (
	"database/sql"
	"errors"
	"fmt"

	"vanguard-platform/internal/apperr"
)

func dbError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return fmt.Errorf("session db error: %w", err)
}
