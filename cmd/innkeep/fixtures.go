package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/catalog"
	"innkeep/internal/app/handlers/support"
	domainacc "innkeep/internal/domain/accommodations"
	"innkeep/internal/infra/config"
	"innkeep/internal/infra/security"
	"innkeep/internal/infra/storage/s3"
)

// loadCatalog seeds an empty catalog from the S3 snapshot when one is
// configured, otherwise from the local fixtures file.
func (a *application) loadCatalog(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	unit, execCtx, cleanup, _, err := support.BeginUnit(ctx, a.factory)
	if err != nil {
		return err
	}
	defer cleanup()

	existing, err := unit.Accommodations().List(execCtx, domainacc.Filter{})
	if err != nil {
		return fmt.Errorf("inspect catalog: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("catalog already populated, skipping import", "accommodations", len(existing))
		return nil
	}

	snapshot, source, err := a.readSnapshot(ctx, cfg, logger)
	if err != nil || snapshot == nil {
		return err
	}
	if err := catalog.ImportSnapshot(execCtx, unit, *snapshot, time.Now().UTC()); err != nil {
		return fmt.Errorf("import %s: %w", source, err)
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	logger.Info("catalog imported",
		"source", source,
		"accommodations", len(snapshot.Accommodations),
		"periods", len(snapshot.Periods),
		"price_rules", len(snapshot.PriceRules))
	return nil
}

func (a *application) readSnapshot(ctx context.Context, cfg config.Config, logger *slog.Logger) (*dto.CatalogSnapshot, string, error) {
	if a.snapshots != nil && cfg.CatalogSnapshotKey != "" {
		data, err := a.snapshots.Get(ctx, cfg.CatalogSnapshotKey)
		switch {
		case err == nil:
			snapshot, err := decodeSnapshot(data)
			return snapshot, "s3://" + cfg.S3Bucket + "/" + cfg.CatalogSnapshotKey, err
		case errors.Is(err, s3.ErrObjectNotFound):
			logger.Info("catalog snapshot not found, falling back to fixtures", "key", cfg.CatalogSnapshotKey)
		default:
			return nil, "", fmt.Errorf("fetch snapshot: %w", err)
		}
	}

	path := cfg.CatalogFixtures
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("catalog fixtures file not found, skipping", "path", path)
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("catalog fixtures file empty", "path", path)
		return nil, "", nil
	}
	snapshot, err := decodeSnapshot(data)
	return snapshot, path, err
}

func decodeSnapshot(data []byte) (*dto.CatalogSnapshot, error) {
	var snapshot dto.CatalogSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// hashToken prints a bcrypt hash for ADMIN_TOKEN_HASH. Without an argument a
// fresh random token is minted and printed alongside its hash.
func hashToken(out io.Writer, args []string) int {
	token := ""
	if len(args) > 0 {
		token = args[0]
		if !security.IsAdminToken(token) {
			fmt.Fprintf(os.Stderr, "warning: token lacks the %s prefix\n", security.AdminTokenPrefix)
		}
	} else {
		generated, err := security.RandomTokenGenerator{}.NewToken()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		token = generated
		fmt.Fprintf(out, "token: %s\n", token)
	}
	hash, err := security.BcryptHasher{}.Hash(token)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintf(out, "ADMIN_TOKEN_HASH=%s\n", hash)
	return 0
}
