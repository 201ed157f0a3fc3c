package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Loads(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "embedded", r.Source())
	assert.Contains(t, r.Names(), "contacts")
	assert.Contains(t, r.Names(), "opportunities")
	assert.NotPanics(t, func() { Default() })
}

func TestDefault_SearchableFields(t *testing.T) {
	r := Default()

	tests := []struct {
		resource string
		want     []string
	}{
		{"contacts", []string{"first_name", "last_name", "company_name", "title"}},
		{"organizations", []string{"name", "phone", "website", "postal_code", "city", "state", "description"}},
		{"opportunities", []string{"name", "description", "next_action", "lead_source", "customer_organization_name"}},
		{"products", []string{"name", "category", "description", "manufacturer_part_number"}},
		{"sales", []string{"first_name", "last_name", "email"}},
	}
	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			assert.Equal(t, tt.want, r.SearchableFields(tt.resource))
		})
	}

	assert.Empty(t, r.SearchableFields("tasks"))
	assert.Empty(t, r.SearchableFields("tags"))
	assert.Empty(t, r.SearchableFields("unknown"))
}

func TestDefault_SchemaDefaults(t *testing.T) {
	r := Default()

	tags, ok := r.Resource("tags")
	require.True(t, ok)
	assert.False(t, tags.Summary)
	assert.False(t, tags.SoftDelete)
	assert.Empty(t, tags.Searchable)
	assert.Nil(t, tags.Stale)

	assert.Equal(t, []string{"tags", "email", "phone"}, r.ContainedArrayFields())
}

func TestDefault_TableName(t *testing.T) {
	r := Default()

	assert.Equal(t, "contacts", r.TableName("contacts"))
	assert.Equal(t, "contact_notes", r.TableName("contactNotes"))
	assert.Equal(t, "opportunity_notes", r.TableName("opportunityNotes"))
	assert.Equal(t, "widgets", r.TableName("widgets"))
}

func TestDefault_StaleRule(t *testing.T) {
	r := Default()

	rule, ok := r.StaleRule("opportunities")
	require.True(t, ok)
	assert.Equal(t, "stage", rule.Field)
	assert.Equal(t, "last_activity_date", rule.Activity)
	assert.Equal(t, []string{"closed_won", "closed_lost"}, rule.Closed)
	assert.Equal(t, map[string]int{
		"new_lead":             7,
		"initial_outreach":     14,
		"sample_visit_offered": 14,
		"feedback_logged":      21,
		"demo_scheduled":       14,
	}, rule.Thresholds)

	days, ok := rule.MinThreshold()
	require.True(t, ok)
	assert.Equal(t, 7, days)

	_, ok = r.StaleRule("opportunities_summary")
	assert.True(t, ok, "summary view shares the base rule")

	_, ok = r.StaleRule("contacts")
	assert.False(t, ok)
}

func TestStaleRule_MinThresholdEmpty(t *testing.T) {
	_, ok := StaleRule{}.MinThreshold()
	assert.False(t, ok)
}

func TestDefault_Collection(t *testing.T) {
	r := Default()

	c, ok := r.Collection("opportunities")
	require.True(t, ok)
	assert.Equal(t, Collection{
		Field:      "products_to_sync",
		Previous:   "products",
		Procedure:  "sync_opportunity_with_products",
		ParentKey:  "opportunity_data",
		CreatesKey: "products_to_create",
		UpdatesKey: "products_to_update",
		DeletesKey: "product_ids_to_delete",
	}, c)

	_, ok = r.Collection("contacts")
	assert.False(t, ok)
}

func writeCUE(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "resources.cue", `package registry

containedArrayFields: ["labels"]

resources: {
	widgets: {
		table:      "app_widgets"
		softDelete: true
		searchable: ["name"]
		filterable: ["id", "name", "labels"]
		collection: {
			field:     "parts_to_sync"
			previous:  "parts"
			procedure: "sync_widget_with_parts"
		}
	}
}
`)

	r, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, r.Source())
	assert.Equal(t, []string{"widgets"}, r.Names())
	assert.Equal(t, "app_widgets", r.TableName("widgets"))
	assert.Equal(t, []string{"labels"}, r.ContainedArrayFields())

	c, ok := r.Collection("widgets")
	require.True(t, ok)
	assert.Equal(t, "parent_data", c.ParentKey)
	assert.Equal(t, "creates", c.CreatesKey)
	assert.Equal(t, "updates", c.UpdatesKey)
	assert.Equal(t, "deletes", c.DeletesKey)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `package registry

resources: widgets: {
	searchabel: ["name"]
}
`)

	_, err := Load(dir)
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, []string{ErrCodeInvalid, ErrCodeBuildFailed}, loadErr.Code)
}

func TestLoad_NegativeThresholdRejected(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `package registry

resources: deals: stale: thresholds: open: -1
`)

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoad_EmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "empty.cue", `package registry

resources: {}
`)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no resources")
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoad_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "file.cue", "package registry\n")

	_, err := Load(filepath.Join(dir, "file.cue"))

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
	assert.Contains(t, loadErr.Error(), "not a directory")
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: ErrCodeInvalid, Message: "bad"}
	assert.Equal(t, "E201: bad", err.Error())
}
