package backend

import (
	"fmt"

	"finflow/internal/config"
)

// FromAppConfig picks the payments sheet backend: Google Sheets when a
// spreadsheet is configured, the local seed directory when SEED_DIR is set,
// otherwise none.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := NoBackend
	switch {
	case appConfig.GoogleSpreadsheetID != "":
		backendType = SheetsBackend
	case appConfig.SeedDir != "":
		backendType = MemoryBackend
	}

	return Config{
		Type: backendType,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GooglePaymentsSheet:      appConfig.GooglePaymentsSheet,
		GoogleExportSheet:        appConfig.GoogleExportSheet,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		DataDirectory: appConfig.SeedDir,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			// GOOGLE_APPLICATION_CREDENTIALS is resolved by the sheets client
			return nil
		}
	case MemoryBackend:
		if c.DataDirectory == "" {
			return fmt.Errorf("data directory is required for memory backend")
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SheetsBackend, MemoryBackend, NoBackend}
}
