package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"vidos-entegrasyon/core"
)

// SaveConfig, güncel konfigürasyon yapısını belirtilen yola JSON olarak kaydeder.
func SaveConfig(path string, config core.Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(config)
}
