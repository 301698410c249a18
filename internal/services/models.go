package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

// ModelInfo is one entry of the /models catalog.
type ModelInfo struct {
	ID           string `yaml:"id" json:"id"`
	LabelName    string `yaml:"labelName" json:"labelName"`
	Reasoning    bool   `yaml:"reasoning" json:"reasoning"`
	Websearch    bool   `yaml:"websearch" json:"websearch"`
	DeepResearch bool   `yaml:"deepResearch" json:"deepResearch"`
	Description  string `yaml:"description" json:"description"`
}

type modelCatalogFile struct {
	Models            []ModelInfo `yaml:"models"`
	DefaultModel      string      `yaml:"defaultModel"`
	DeepResearchModel string      `yaml:"deepResearchModel"`
}

// ModelCatalog exposes the selectable model list and resolves UI
// selections to concrete model ids.
type ModelCatalog interface {
	List() []ModelInfo
	// Resolve maps a selected model id to the id actually used.
	// deepResearch forces the dedicated deep-research model.
	Resolve(selected string, deepResearch bool) string
}

type modelCatalog struct {
	log  *logger.Logger
	file modelCatalogFile
}

func NewModelCatalog(log *logger.Logger) (ModelCatalog, error) {
	path := strings.TrimSpace(os.Getenv("MODELS_CONFIG_PATH"))
	if path == "" {
		path = "configs/models.yaml"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model catalog: read %s: %w", path, err)
	}
	var file modelCatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("model catalog: parse %s: %w", path, err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("model catalog: %s lists no models", path)
	}
	return &modelCatalog{log: log.With("service", "ModelCatalog"), file: file}, nil
}

func (c *modelCatalog) List() []ModelInfo {
	out := make([]ModelInfo, len(c.file.Models))
	copy(out, c.file.Models)
	return out
}

func (c *modelCatalog) Resolve(selected string, deepResearch bool) string {
	if deepResearch && c.file.DeepResearchModel != "" {
		return c.file.DeepResearchModel
	}
	for _, m := range c.file.Models {
		if m.ID == selected {
			return m.ID
		}
	}
	return c.file.DefaultModel
}
