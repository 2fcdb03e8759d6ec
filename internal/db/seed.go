package db

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/db/models"
)

// SeedFile is the YAML document accepted by `hipconnect seed`.
type SeedFile struct {
	Scopes []SeedScope `yaml:"scopes" validate:"dive"`
	Addons []SeedAddon `yaml:"addons" validate:"dive"`
}

type SeedScope struct {
	Name        string `yaml:"name" validate:"required,max=50"`
	Description string `yaml:"description" validate:"max=200"`
}

type SeedAddon struct {
	Key         string       `yaml:"key" validate:"omitempty,max=100"`
	Name        string       `yaml:"name" validate:"required,max=100"`
	Description string       `yaml:"description" validate:"max=200"`
	Vendor      SeedVendor   `yaml:"vendor"`
	AllowGlobal bool         `yaml:"allow_global"`
	AllowRoom   bool         `yaml:"allow_room"`
	Scopes      []string     `yaml:"scopes" validate:"dive,required,max=50"`
	Glances     []SeedGlance `yaml:"glances" validate:"dive"`
}

type SeedVendor struct {
	Name string `yaml:"name" validate:"max=100"`
	URL  string `yaml:"url" validate:"omitempty,url,max=200"`
}

type SeedGlance struct {
	Key     string `yaml:"key" validate:"required,max=40"`
	Name    string `yaml:"name" validate:"required,max=100"`
	DataURL string `yaml:"data_url" validate:"omitempty,url,max=200"`
	Target  string `yaml:"target" validate:"max=40"`
	Icon    struct {
		URL   string `yaml:"url" validate:"omitempty,url,max=200"`
		URL2x string `yaml:"url2x" validate:"omitempty,url,max=200"`
	} `yaml:"icon"`
}

// SeedResult counts what a seed run touched.
type SeedResult struct {
	Scopes  int
	Addons  int
	Glances int
}

var seedValidate = validator.New()

// SeedFromPath opens path and applies it with Seed.
func SeedFromPath(db *gorm.DB, path string, log *slog.Logger) (SeedResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Seed(db, f, log)
}

// Seed upserts scopes, addons and glances by natural key in one transaction.
// Running the same document twice leaves the database unchanged.
func Seed(db *gorm.DB, r io.Reader, log *slog.Logger) (SeedResult, error) {
	var doc SeedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return SeedResult{}, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := seedValidate.Struct(&doc); err != nil {
		return SeedResult{}, fmt.Errorf("invalid seed file: %w", err)
	}

	var res SeedResult
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, s := range doc.Scopes {
			if _, err := upsertScope(tx, s.Name, s.Description); err != nil {
				return err
			}
			res.Scopes++
		}
		for _, a := range doc.Addons {
			n, err := seedAddon(tx, a, log)
			if err != nil {
				return err
			}
			res.Addons++
			res.Glances += n
		}
		return nil
	})
	return res, err
}

func upsertScope(tx *gorm.DB, name, description string) (models.Scope, error) {
	var scope models.Scope
	err := tx.Where(models.Scope{Name: name}).
		Assign(scopeUpdates(description)).
		FirstOrCreate(&scope).Error
	if err != nil {
		return scope, fmt.Errorf("failed to upsert scope %s: %w", name, err)
	}
	return scope, nil
}

func scopeUpdates(description string) map[string]interface{} {
	if description == "" {
		return map[string]interface{}{}
	}
	return map[string]interface{}{"description": description}
}

func seedAddon(tx *gorm.DB, a SeedAddon, log *slog.Logger) (int, error) {
	key := a.Key
	if key == "" {
		key = slug.Make(a.Name)
	}
	if !a.AllowGlobal && !a.AllowRoom {
		log.Warn("addon allows neither global nor room installs", "addon_key", key)
	}

	var addon models.Addon
	err := tx.Where(models.Addon{Key: key}).
		Assign(map[string]interface{}{
			"name":         a.Name,
			"description":  a.Description,
			"vendor_name":  a.Vendor.Name,
			"vendor_url":   a.Vendor.URL,
			"allow_global": a.AllowGlobal,
			"allow_room":   a.AllowRoom,
		}).
		FirstOrCreate(&addon).Error
	if err != nil {
		return 0, fmt.Errorf("failed to upsert addon %s: %w", key, err)
	}

	scopes := make([]models.Scope, 0, len(a.Scopes))
	for _, name := range a.Scopes {
		scope, err := upsertScope(tx, name, "")
		if err != nil {
			return 0, err
		}
		scopes = append(scopes, scope)
	}
	if err := tx.Model(&addon).Association("Scopes").Replace(scopes); err != nil {
		return 0, fmt.Errorf("failed to set scopes for addon %s: %w", key, err)
	}

	for _, g := range a.Glances {
		var glance models.Glance
		err := tx.Where(models.Glance{AddonID: addon.ID, Key: g.Key}).
			Assign(map[string]interface{}{
				"name":      g.Name,
				"data_url":  g.DataURL,
				"target":    g.Target,
				"icon_url":  g.Icon.URL,
				"icon_url2": g.Icon.URL2x,
			}).
			FirstOrCreate(&glance).Error
		if err != nil {
			return 0, fmt.Errorf("failed to upsert glance %s/%s: %w", key, g.Key, err)
		}
	}

	log.Info("seeded addon", "addon_id", addon.ID, "addon_key", key, "scopes", len(scopes), "glances", len(a.Glances))
	return len(a.Glances), nil
}
