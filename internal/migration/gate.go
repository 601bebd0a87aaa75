package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrSchemaInactive         = errors.New("schema state is not active; run migrate first")
	ErrSchemaVersionMismatch  = errors.New("schema version mismatch")
	ErrSchemaChecksumMismatch = errors.New("schema checksum mismatch")
)

type schemaStateRow struct {
	Status        string
	SchemaVersion string
	Checksum      *string
}

// EnforceSchemaGate refuses to serve against a database whose schema_state
// does not match the migrations embedded in this binary. Invoked at startup;
// migrations themselves never run implicitly here.
func EnforceSchemaGate(conn *gorm.DB) error {
	latestVersion, err := LatestVersion()
	if err != nil {
		return err
	}
	expectedChecksum, err := Checksum()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var state schemaStateRow
	err = conn.WithContext(ctx).
		Raw("SELECT status, schema_version, checksum FROM schema_state WHERE id = TRUE").
		Scan(&state).Error
	if err != nil {
		return fmt.Errorf("read schema state: %w", err)
	}
	if state.Status == "" {
		return ErrSchemaInactive
	}

	if state.Status != schemaStatusActive {
		return fmt.Errorf("%w: status=%s", ErrSchemaInactive, state.Status)
	}
	if state.SchemaVersion != fmt.Sprintf("%d", latestVersion) {
		return fmt.Errorf("%w: state=%s expected=%d", ErrSchemaVersionMismatch, state.SchemaVersion, latestVersion)
	}
	if state.Checksum != nil && strings.TrimSpace(*state.Checksum) != "" && *state.Checksum != expectedChecksum {
		return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaChecksumMismatch, *state.Checksum, expectedChecksum)
	}
	return nil
}
