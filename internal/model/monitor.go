package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Check types known to the executor registry. The browser type is the only one
// implemented in this service; others are registered by external collaborators.
const (
	CheckTypeBrowser = "browser"
	CheckTypeHTTP    = "http"
)

// Monitor represents a monitored target configuration document.
// The scheduler treats it as immutable per check cycle: it is re-fetched at
// execution time and never written back.
type Monitor struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name            string             `json:"name" bson:"name"`
	Active          bool               `json:"active" bson:"active"`
	Type            string             `json:"type" bson:"type"`
	IntervalSeconds int                `json:"interval_seconds" bson:"interval_seconds"`
	Schedule        string             `json:"schedule,omitempty" bson:"schedule,omitempty"` // optional cron override
	URL             string             `json:"url" bson:"url"`
	RemoteBrowser   string             `json:"remote_browser,omitempty" bson:"remote_browser,omitempty"`
	ScriptedTest    []ScriptedCommand  `json:"scripted_test,omitempty" bson:"scripted_test,omitempty"`
	Metadata        Metadata           `json:"metadata" bson:"metadata"`
}

// Interval returns the configured check interval as a duration.
func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// Validate validates the monitor configuration.
func (m *Monitor) Validate() error {
	if m.Name == "" {
		return errors.New("monitor name is required")
	}
	if m.Type == "" {
		return errors.New("monitor type is required")
	}
	if m.IntervalSeconds < 1 {
		return errors.New("interval must be at least 1 second")
	}

	if err := ValidateTargetURL(m.URL); err != nil {
		return err
	}

	if m.Schedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(m.Schedule); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	}

	for i := range m.ScriptedTest {
		if err := m.ScriptedTest[i].Validate(); err != nil {
			return fmt.Errorf("scripted command %d: %w", i, err)
		}
	}

	now := time.Now().UTC()
	if m.Metadata.CreatedAt.IsZero() {
		m.Metadata.CreatedAt = now
	}
	if m.Metadata.UpdatedAt.IsZero() {
		m.Metadata.UpdatedAt = now
	}

	return nil
}

// ValidateTargetURL rejects anything that is not an http/https target. This runs
// before any browser resource is acquired so that monitor configuration cannot be
// used to reach local resources (file://) or arbitrary protocols.
func ValidateTargetURL(raw string) error {
	if raw == "" {
		return errors.New("target URL is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("disallowed URL scheme %q: target must be http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("target URL has no host")
	}
	return nil
}

// Scripted test command actions
const (
	ActionWait       = "wait"
	ActionClick      = "click"
	ActionType       = "type"
	ActionScroll     = "scroll"
	ActionScreenshot = "screenshot"
)

// ScriptedCommand is one step of a scripted browser interaction sequence.
type ScriptedCommand struct {
	Action   string `json:"action" bson:"action"`
	Selector string `json:"selector,omitempty" bson:"selector,omitempty"`
	Value    string `json:"value,omitempty" bson:"value,omitempty"`
}

// Validate validates a scripted command.
func (c *ScriptedCommand) Validate() error {
	switch strings.ToLower(c.Action) {
	case ActionWait, ActionScroll:
		if c.Value == "" {
			return fmt.Errorf("%s command requires a value", c.Action)
		}
	case ActionClick, ActionType:
		if c.Selector == "" {
			return fmt.Errorf("%s command requires a selector", c.Action)
		}
	case ActionScreenshot:
		// No arguments needed
	default:
		return fmt.Errorf("unknown scripted action: %s", c.Action)
	}
	c.Action = strings.ToLower(c.Action)
	return nil
}

// Metadata represents common metadata fields
type Metadata struct {
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	Tags      []string  `json:"tags,omitempty" bson:"tags,omitempty"`
}
