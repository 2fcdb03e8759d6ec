// Package descriptor renders the capability manifest the platform reads
// before installing an addon.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/pysugar/hipchat-connect/internal/db/models"
)

type Descriptor struct {
	Key          string       `json:"key"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Vendor       Vendor       `json:"vendor"`
	Links        Links        `json:"links"`
	Capabilities Capabilities `json:"capabilities"`
}

type Vendor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Links struct {
	Self string `json:"self"`
}

type Capabilities struct {
	HipchatAPIConsumer APIConsumer `json:"hipchatApiConsumer"`
	Installable        Installable `json:"installable"`
	Glance             []Glance    `json:"glance,omitempty"`
}

type APIConsumer struct {
	Scopes []string `json:"scopes"`
}

type Installable struct {
	CallbackURL string `json:"callbackUrl"`
	AllowGlobal bool   `json:"allowGlobal"`
	AllowRoom   bool   `json:"allowRoom"`
}

type Glance struct {
	Name     Value  `json:"name"`
	QueryURL string `json:"queryUrl"`
	Key      string `json:"key"`
	Target   string `json:"target"`
	Icon     Icon   `json:"icon"`
}

type Value struct {
	Value string `json:"value"`
}

type Icon struct {
	URL   string `json:"url"`
	URL2x string `json:"url@2x"`
}

// Builder turns stored addons into descriptors with absolute URLs under baseURL.
type Builder struct {
	baseURL string
}

func NewBuilder(baseURL string) *Builder {
	return &Builder{baseURL: strings.TrimRight(baseURL, "/")}
}

// DescriptorURL is links.self for the addon.
func (b *Builder) DescriptorURL(addonID uint) string {
	return fmt.Sprintf("%s/descriptor/%d", b.baseURL, addonID)
}

// InstallURL is the installable callback URL.
func (b *Builder) InstallURL(addonID uint) string {
	return fmt.Sprintf("%s/install/%d", b.baseURL, addonID)
}

// QueryURL is the glance's explicit data URL, or the built-in glance endpoint.
func (b *Builder) QueryURL(g *models.Glance) string {
	if g.DataURL != "" {
		return g.DataURL
	}
	return fmt.Sprintf("%s/glance/%d", b.baseURL, g.ID)
}

// BuildDescriptor returns nil for an addon that has not been saved yet.
// Scopes and Glances must be loaded on addon.
func (b *Builder) BuildDescriptor(addon *models.Addon) *Descriptor {
	if addon == nil || addon.ID == 0 {
		return nil
	}

	d := &Descriptor{
		Key:         addon.Key,
		Name:        addon.Name,
		Description: addon.Description,
		Vendor:      Vendor{Name: addon.VendorName, URL: addon.VendorURL},
		Links:       Links{Self: b.DescriptorURL(addon.ID)},
		Capabilities: Capabilities{
			HipchatAPIConsumer: APIConsumer{Scopes: addon.ScopeNames()},
			Installable: Installable{
				CallbackURL: b.InstallURL(addon.ID),
				AllowGlobal: addon.AllowGlobal,
				AllowRoom:   addon.AllowRoom,
			},
		},
	}

	for i := range addon.Glances {
		g := &addon.Glances[i]
		d.Capabilities.Glance = append(d.Capabilities.Glance, Glance{
			Name:     Value{Value: g.Name},
			QueryURL: b.QueryURL(g),
			Key:      g.Key,
			Target:   g.Target,
			Icon:     Icon{URL: g.IconURL, URL2x: g.IconURL2},
		})
	}
	return d
}
