package descriptor

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pysugar/hipchat-connect/internal/db/models"
)

func testAddon() *models.Addon {
	return &models.Addon{
		ID:          7,
		Key:         "build-status",
		Name:        "Build Status",
		Description: "Shows the latest build",
		VendorName:  "Example Co",
		VendorURL:   "https://example.com",
		AllowGlobal: true,
		AllowRoom:   false,
		Scopes:      []models.Scope{{Name: "view_group"}, {Name: "send_notification"}},
	}
}

func TestBuildDescriptor(t *testing.T) {
	b := NewBuilder("https://addons.example.com/")

	got := b.BuildDescriptor(testAddon())
	want := &Descriptor{
		Key:         "build-status",
		Name:        "Build Status",
		Description: "Shows the latest build",
		Vendor:      Vendor{Name: "Example Co", URL: "https://example.com"},
		Links:       Links{Self: "https://addons.example.com/descriptor/7"},
		Capabilities: Capabilities{
			HipchatAPIConsumer: APIConsumer{Scopes: []string{"send_notification", "view_group"}},
			Installable: Installable{
				CallbackURL: "https://addons.example.com/install/7",
				AllowGlobal: true,
				AllowRoom:   false,
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildDescriptor() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDescriptor_Glances(t *testing.T) {
	b := NewBuilder("https://addons.example.com")
	addon := testAddon()
	addon.Glances = []models.Glance{
		{ID: 3, Key: "build", Name: "Build", Target: "sidebar", IconURL: "https://example.com/i.png", IconURL2: "https://example.com/i@2x.png"},
		{ID: 4, Key: "deploy", Name: "Deploy", DataURL: "https://data.example.com/deploy"},
	}

	got := b.BuildDescriptor(addon).Capabilities.Glance
	want := []Glance{
		{
			Name:     Value{Value: "Build"},
			QueryURL: "https://addons.example.com/glance/3",
			Key:      "build",
			Target:   "sidebar",
			Icon:     Icon{URL: "https://example.com/i.png", URL2x: "https://example.com/i@2x.png"},
		},
		{
			Name:     Value{Value: "Deploy"},
			QueryURL: "https://data.example.com/deploy",
			Key:      "deploy",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("glances mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDescriptor_UnsavedAddon(t *testing.T) {
	b := NewBuilder("https://addons.example.com")
	addon := testAddon()
	addon.ID = 0
	if got := b.BuildDescriptor(addon); got != nil {
		t.Fatalf("expected nil descriptor for unsaved addon, got %+v", got)
	}
	if got := b.BuildDescriptor(nil); got != nil {
		t.Fatalf("expected nil descriptor for nil addon, got %+v", got)
	}
}

func TestBuildDescriptor_JSONShape(t *testing.T) {
	b := NewBuilder("https://addons.example.com")

	raw, err := json.Marshal(b.BuildDescriptor(testAddon()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	caps := doc["capabilities"].(map[string]any)
	if _, ok := caps["glance"]; ok {
		t.Error("glance capability must be omitted when the addon has no glances")
	}
	installable := caps["installable"].(map[string]any)
	if installable["callbackUrl"] != "https://addons.example.com/install/7" {
		t.Errorf("unexpected callbackUrl %v", installable["callbackUrl"])
	}

	addon := testAddon()
	addon.Glances = []models.Glance{{ID: 1, Key: "g", IconURL2: "https://example.com/2x.png"}}
	raw, _ = json.Marshal(b.BuildDescriptor(addon))
	var withGlance struct {
		Capabilities struct {
			Glance []map[string]any `json:"glance"`
		} `json:"capabilities"`
	}
	if err := json.Unmarshal(raw, &withGlance); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	icon := withGlance.Capabilities.Glance[0]["icon"].(map[string]any)
	if icon["url@2x"] != "https://example.com/2x.png" {
		t.Errorf("expected url@2x key, got %v", icon)
	}
}
