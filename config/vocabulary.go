package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Vocabulary holds the phrase lists that drive the domain classifier, the
// escalation heuristic and ticket redirects.
type Vocabulary struct {
	DomainTerms        []string           `yaml:"domain_terms"`
	UncertaintyPhrases []string           `yaml:"uncertainty_phrases"`
	RedirectCategories []RedirectCategory `yaml:"redirect_categories"`
}

type RedirectCategory struct {
	Name     string   `yaml:"name"`
	Email    string   `yaml:"email"`
	Keywords []string `yaml:"keywords"`
}

const vocabularySchemaURL = "vocabulary.schema.json"

const vocabularySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "domain_terms": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "uncertainty_phrases": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "redirect_categories": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "email", "keywords"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "email": {"type": "string", "minLength": 3},
          "keywords": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
        }
      }
    }
  }
}`

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		DomainTerms: []string{
			"dvsum", "dv sum", "dv-sum", "caddi",
			"data vault", "datavault", "snowflake", "data warehouse",
			"etl", "data integration", "data pipeline", "data modeling", "data load",
			"data quality", "data source", "source system", "gateway", "scan", "connection",
			"connector", "agent", "rule", "job", "dashboard", "report",
			"password", "login", "sign in", "account", "user", "access",
			"configure", "setup", "install", "error",
		},
		UncertaintyPhrases: []string{
			"i don't know", "don't know", "do not know",
			"cannot answer", "can't answer", "unclear", "not sure",
			"contact support", "need more information", "more information is needed",
			"consulting with our engineering team", "suggest creating a support ticket",
		},
		RedirectCategories: []RedirectCategory{
			{Name: "training", Email: "training@dvsum.com", Keywords: []string{"training", "course", "certification", "learning", "workshop"}},
			{Name: "it_helpdesk", Email: "helpdesk@dvsum.com", Keywords: []string{"laptop", "hardware", "vpn", "network access", "wifi", "password reset", "account creation"}},
			{Name: "infosec", Email: "infosec@dvsum.com", Keywords: []string{"security policy", "security incident", "phishing", "vulnerability", "infosec"}},
			{Name: "hr_us", Email: "hr@dvsum.com", Keywords: []string{"benefits", "pto", "vacation", "leave", "onboarding", "offboarding", "401k"}},
			{Name: "payroll_us", Email: "finance@dvsum.com", Keywords: []string{"paycheck", "salary", "tax", "w2", "payment", "payroll"}},
			{Name: "hr_india", Email: "hr-india@dvsum.com", Keywords: []string{"india office", "bangalore office", "india hr", "indian employee"}},
		},
	}
}

// LoadVocabulary reads a YAML vocabulary file. An empty path yields the
// defaults; sections missing from the file keep their default lists.
func LoadVocabulary(path string) (Vocabulary, error) {
	vocab := DefaultVocabulary()
	if strings.TrimSpace(path) == "" {
		return vocab, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary file: %w", err)
	}

	if err := ValidateVocabulary(data); err != nil {
		return Vocabulary{}, err
	}

	var parsed Vocabulary
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary file: %w", err)
	}

	if parsed.DomainTerms != nil {
		vocab.DomainTerms = parsed.DomainTerms
	}
	if parsed.UncertaintyPhrases != nil {
		vocab.UncertaintyPhrases = parsed.UncertaintyPhrases
	}
	if parsed.RedirectCategories != nil {
		vocab.RedirectCategories = parsed.RedirectCategories
	}

	return vocab, nil
}

// ValidateVocabulary checks raw YAML against the vocabulary schema.
func ValidateVocabulary(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse vocabulary file: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(vocabularySchema))
	if err != nil {
		return fmt.Errorf("parse vocabulary schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(vocabularySchemaURL, schemaDoc); err != nil {
		return fmt.Errorf("add vocabulary schema: %w", err)
	}

	schema, err := compiler.Compile(vocabularySchemaURL)
	if err != nil {
		return fmt.Errorf("compile vocabulary schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid vocabulary file: %w", err)
	}
	return nil
}
