package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gethiox/kinesix/internal/pkg/logger"
)

//go:embed kinesix-config/kinesix.config
//go:embed kinesix-config/bindings.yaml
var templateConfig embed.FS

const (
	templateDir = "kinesix-config"
	configFile  = "kinesix.config"
)

// createConfigDirectoryIfNeeded copies the template tree into dir.
// Existing files stay intact, only the missing ones are created.
func createConfigDirectoryIfNeeded(dir string) error {
	_, err := os.Stat(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cannot open config directory: %w", err)
		}
		log.Info("config not exist, generating tree...", logger.Info)
	}

	err = fs.WalkDir(templateConfig, templateDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(templateDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, rel)

		if d.IsDir() {
			err := os.MkdirAll(dst, 0o777)
			if err != nil {
				return fmt.Errorf("cannot create \"%s\" directory: %w", dst, err)
			}
			return nil
		}

		_, err = os.Stat(dst)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unexpected error when reading \"%s\": %w", dst, err)
		}

		data, err := fs.ReadFile(templateConfig, path)
		if err != nil {
			return fmt.Errorf("cannot read \"%s\" template file: %w", path, err)
		}
		err = os.WriteFile(dst, data, 0o666)
		if err != nil {
			return fmt.Errorf("cannot write data into \"%s\" file: %w", dst, err)
		}
		log.Info(fmt.Sprintf("Created \"%s\" file", dst), logger.Debug)
		return nil
	})
	if err != nil {
		return fmt.Errorf("config generation failed: %w", err)
	}
	return nil
}
