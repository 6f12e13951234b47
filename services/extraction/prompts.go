package extraction

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
)

//go:embed prompts.yaml
var promptsYAML []byte

const (
	schemaPlaceholder = "%SCHEMA%"
	inputPlaceholder  = "%INPUT%"
)

// Prompt task names in the catalog
const (
	TaskText     = "text"
	TaskDocument = "document"
	TaskImage    = "image"
)

// PromptCatalog holds the system prompt and one task prompt per input modality
type PromptCatalog struct {
	System string            `yaml:"system"`
	Tasks  map[string]string `yaml:"tasks"`
}

// LoadPrompts parses the embedded catalog and renders the tender schema
// into the system prompt.
func LoadPrompts() (*PromptCatalog, error) {
	return ParsePrompts(promptsYAML)
}

// ParsePrompts parses a catalog from YAML
func ParsePrompts(data []byte) (*PromptCatalog, error) {
	var catalog PromptCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalog: %w", err)
	}
	if strings.TrimSpace(catalog.System) == "" {
		return nil, fmt.Errorf("prompt catalog has no system prompt")
	}
	for _, task := range []string{TaskText, TaskDocument, TaskImage} {
		if strings.TrimSpace(catalog.Tasks[task]) == "" {
			return nil, fmt.Errorf("prompt catalog is missing task %q", task)
		}
	}
	if !strings.Contains(catalog.Tasks[TaskText], inputPlaceholder) {
		return nil, fmt.Errorf("text task prompt has no %s placeholder", inputPlaceholder)
	}

	schema, err := TenderSchema()
	if err != nil {
		return nil, err
	}
	catalog.System = strings.Replace(catalog.System, schemaPlaceholder, schema, 1)
	return &catalog, nil
}

// TenderSchema returns the JSON Schema of the extraction record
func TenderSchema() (string, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(&models.TenderExtraction{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render tender schema: %w", err)
	}
	return string(data), nil
}

// TextPrompt interpolates sanitized tender text into the text task prompt
func (c *PromptCatalog) TextPrompt(text string) string {
	return strings.Replace(c.Tasks[TaskText], inputPlaceholder, text, 1)
}

// DocumentPrompt is the task prompt sent with a PDF attachment
func (c *PromptCatalog) DocumentPrompt() string {
	return c.Tasks[TaskDocument]
}

// ImagePrompt is the task prompt sent with a scanned image
func (c *PromptCatalog) ImagePrompt() string {
	return c.Tasks[TaskImage]
}
