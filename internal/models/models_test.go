package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredVersionExpiryIsInclusive(t *testing.T) {
	effective := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	v := RequiredVersion{DocumentVersion: DocumentVersion{EffectiveFrom: effective}, GracePeriodDays: 7}

	assert.False(t, v.ExpiredAt(effective.AddDate(0, 0, 6)))
	assert.False(t, v.ExpiredAt(effective.AddDate(0, 0, 7).Add(-time.Nanosecond)))
	assert.True(t, v.ExpiredAt(effective.AddDate(0, 0, 7)))
	assert.True(t, v.ExpiredAt(effective.AddDate(0, 0, 30)))
}

func TestConsentDeadlineIgnoresDaylightSavingShift(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks move forward on 2026-03-29, inside the grace period.
	effective := time.Date(2026, 3, 25, 12, 0, 0, 0, madrid)
	v := RequiredVersion{DocumentVersion: DocumentVersion{EffectiveFrom: effective}, GracePeriodDays: 7}

	deadline := v.ConsentDeadline()
	assert.Equal(t, 7*24*time.Hour, deadline.Sub(effective))
	assert.True(t, deadline.Equal(time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC)))
	assert.False(t, v.ExpiredAt(time.Date(2026, 4, 1, 12, 30, 0, 0, madrid)))
	assert.True(t, v.ExpiredAt(time.Date(2026, 4, 1, 13, 0, 0, 0, madrid)))
}

func TestRoleAssignmentWindow(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	open := RoleAssignment{ValidFrom: from}
	bounded := RoleAssignment{ValidFrom: from, ValidTo: &to}

	assert.False(t, open.ActiveAt(from.Add(-time.Second)))
	assert.True(t, open.ActiveAt(from))
	assert.True(t, open.ActiveAt(from.AddDate(5, 0, 0)))
	assert.True(t, bounded.ActiveAt(to.Add(-time.Second)))
	assert.False(t, bounded.ActiveAt(to))
}

func TestLocalizedContentScan(t *testing.T) {
	var c LocalizedContent
	require.NoError(t, c.Scan([]byte(`{"en":"Policy","es":"Política","de":"Richtlinie"}`)))
	assert.Equal(t, "Política", c.Canonical())
	assert.Equal(t, []string{"es", "de", "en"}, c.Languages())

	require.NoError(t, c.Scan(nil))
	assert.Empty(t, c)

	assert.Error(t, c.Scan(42))
}

func TestLegalDocumentFolder(t *testing.T) {
	folder := " /privacy/ "
	doc := LegalDocument{SourceFolder: &folder}
	assert.Equal(t, "privacy", doc.Folder())
	assert.True(t, doc.HasSourceFolder())

	assert.False(t, LegalDocument{}.HasSourceFolder())
	assert.Equal(t, "", LegalDocument{}.ContentIdentity())
	assert.Equal(t, "v3.0", VersionLabel(3))
}
