package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const unnamed = "Unnamed"

// Scenario is a stored scenario document. Only the id and name are
// interpreted; the rest of the document is kept verbatim.
type Scenario struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"scenario_id"`
	Name        string          `gorm:"column:name;type:varchar(255);index" json:"name"`
	Description string          `gorm:"column:description;type:text" json:"description,omitempty"`
	Document    json.RawMessage `gorm:"column:document;type:text;serializer:json" json:"document"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName keeps the table name stable across gorm naming strategies
func (Scenario) TableName() string { return "scenarios" }

// Summary is the listing projection of a scenario
type Summary struct {
	ScenarioID string `json:"scenario_id"`
	Name       string `json:"name"`
}

func (s *Scenario) Summary() Summary {
	return Summary{ScenarioID: s.ID, Name: s.Name}
}

// FromDocument builds a new scenario from a raw JSON document. The name is
// read from "name" or "NAME"; documents without one are stored as "Unnamed".
func FromDocument(raw []byte) (*Scenario, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidDocument
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidDocument)
	}

	name := strings.TrimSpace(doc.Get("name").String())
	if name == "" {
		name = strings.TrimSpace(doc.Get("NAME").String())
	}
	if name == "" {
		name = unnamed
	}

	return &Scenario{
		ID:          uuid.NewString(),
		Name:        name,
		Description: doc.Get("description").String(),
		Document:    json.RawMessage(raw),
	}, nil
}

// ValidateID reports ErrInvalidID unless id is a UUID
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
