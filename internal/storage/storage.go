package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"mint_sniper/internal/models"

	"github.com/shopspring/decimal"
)

// SchemaVersion is bumped whenever the state file layout changes.
const SchemaVersion = "1.1"

// LoadState reads the bot state from disk.
// A missing file is not an error: a fresh default state is written and
// returned. A file that exists but cannot be parsed IS an error — the
// caller must not start trading with an unknown budget.
func LoadState(path string) (models.BotState, error) {
	var s models.BotState

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Println("State file missing, generating template...")
		s = defaultState()
		if err := SaveState(path, s); err != nil {
			return s, err
		}
		return s, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}

	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse state file %s: %w", path, err)
	}

	if migrateState(&s) {
		log.Printf("INFO: State migrated to version %s. Saving...", s.Version)
		if err := SaveState(path, s); err != nil {
			return s, err
		}
	}

	return s, nil
}

func defaultState() models.BotState {
	return models.BotState{
		Version:    SchemaVersion,
		TotalSpent: decimal.Zero,
		Positions:  map[string]*models.Position{},
	}
}

// migrateState handles schema evolution and normalizes nil containers left
// behind by older files. Returns true if the state needs to be re-saved.
func migrateState(s *models.BotState) bool {
	updated := false

	if s.Positions == nil {
		s.Positions = map[string]*models.Position{}
		updated = true
	}

	// Migration: 1.0 -> 1.1 (tiers_fired became a named-flag map)
	if s.Version < "1.1" {
		for _, pos := range s.Positions {
			if pos.TiersFired == nil {
				pos.TiersFired = map[models.Tier]bool{}
			}
		}
		s.Version = SchemaVersion
		updated = true
	}

	return updated
}

// SaveState writes the state to disk using an atomic write pattern:
// write a temp file, sync it, then rename over the destination. A crash
// mid-write can therefore never leave a half-written state file behind.
func SaveState(path string, s models.BotState) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpFile := path + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}

	// Force sync to disk to prevent data loss on power failure before rename
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp state file: %w", err)
	}

	// Close explicitly before renaming (essential on Windows)
	f.Close()

	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
