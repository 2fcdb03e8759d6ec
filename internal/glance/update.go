package glance

import (
	"encoding/json"
	"errors"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"

	"github.com/pysugar/hipchat-connect/internal/db/models"
)

// labels are rendered as HTML inside the chat client
var labelPolicy = bluemonday.UGCPolicy()

// Update is one rendered glance state.
type Update struct {
	Label    string
	Lozenge  Lozenge
	Icon     Icon
	Metadata json.RawMessage
}

// Option sets the optional parts of an Update.
type Option func(*Update) error

func WithLozenge(l Lozenge) Option {
	return func(u *Update) error {
		u.Lozenge = l
		return nil
	}
}

func WithIcon(i Icon) Option {
	return func(u *Update) error {
		u.Icon = i
		return nil
	}
}

// WithMetadata attaches an arbitrary JSON document.
func WithMetadata(raw json.RawMessage) Option {
	return func(u *Update) error {
		if len(raw) == 0 {
			u.Metadata = nil
			return nil
		}
		if !json.Valid(raw) {
			return errors.New("glance metadata is not valid JSON")
		}
		u.Metadata = append(json.RawMessage(nil), raw...)
		return nil
	}
}

// NewUpdate sanitises label and applies opts.
func NewUpdate(label string, opts ...Option) (*Update, error) {
	u := &Update{Label: labelPolicy.Sanitize(label)}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Initialising is the placeholder shown before a data source reports.
func Initialising() *Update {
	return &Update{Label: "Initialising"}
}

type Label struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type Status struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type lozengeValue struct {
	Type  LozengeType `json:"type"`
	Label string      `json:"label"`
}

// Content is the JSON object the platform expects for a glance.
type Content struct {
	Label    Label           `json:"label"`
	Status   *Status         `json:"status,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Status is nil when neither a lozenge nor an icon is set. A lozenge takes
// precedence over an icon.
func (u *Update) Status() *Status {
	switch {
	case !u.Lozenge.IsEmpty():
		return &Status{Type: "lozenge", Value: lozengeValue{Type: u.Lozenge.Type(), Label: u.Lozenge.Label()}}
	case !u.Icon.IsEmpty():
		return &Status{Type: "icon", Value: u.Icon}
	default:
		return nil
	}
}

// Content omits status entirely when Status is nil.
func (u *Update) Content() Content {
	return Content{
		Label:    Label{Type: "html", Value: u.Label},
		Status:   u.Status(),
		Metadata: u.Metadata,
	}
}

// Record converts the update into a history row.
func (u *Update) Record(glanceID uint, target string) *models.GlanceUpdate {
	row := &models.GlanceUpdate{
		GlanceID:     glanceID,
		LabelValue:   u.Label,
		LozengeType:  string(u.Lozenge.Type()),
		LozengeValue: u.Lozenge.Label(),
		IconURL:      u.Icon.URL,
		IconURL2:     u.Icon.URL2x,
		Target:       target,
	}
	if len(u.Metadata) > 0 {
		row.Metadata = datatypes.JSON(u.Metadata)
	}
	return row
}

// FromRecord rebuilds an Update from a stored row.
func FromRecord(row *models.GlanceUpdate) (*Update, error) {
	kind, err := ParseLozengeType(row.LozengeType)
	if err != nil {
		return nil, err
	}
	u := &Update{
		Label:   row.LabelValue,
		Lozenge: Lozenge{kind: kind, label: row.LozengeValue},
		Icon:    Icon{URL: row.IconURL, URL2x: row.IconURL2},
	}
	if len(row.Metadata) > 0 {
		u.Metadata = json.RawMessage(row.Metadata)
	}
	return u, nil
}
