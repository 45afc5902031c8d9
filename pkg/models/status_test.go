package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeFreq_IsValid(t *testing.T) {
	tests := []struct {
		value ChangeFreq
		want  bool
	}{
		{ChangeFreqAlways, true},
		{ChangeFreqHourly, true},
		{ChangeFreqDaily, true},
		{ChangeFreqWeekly, true},
		{ChangeFreqMonthly, true},
		{ChangeFreqYearly, true},
		{ChangeFreqNever, true},
		{ChangeFreqUnset, false},
		{ChangeFreq("fortnightly"), false},
		{ChangeFreq("Daily"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.value.IsValid(), "ChangeFreq(%q).IsValid()", string(tt.value))
	}
	assert.Equal(t, "unset", ChangeFreqUnset.String())
	assert.Equal(t, "weekly", ChangeFreqWeekly.String())
}

func TestLocale(t *testing.T) {
	assert.True(t, LocaleEN.IsValid())
	assert.True(t, LocaleES.IsValid())
	assert.False(t, Locale("fr").IsValid())
	assert.False(t, LocaleUnset.IsValid())
	assert.Equal(t, LocaleES, LocaleEN.Other())
	assert.Equal(t, LocaleEN, LocaleES.Other())
	assert.Equal(t, "unset", LocaleUnset.String())
}

func TestCategory_IsValid(t *testing.T) {
	for _, c := range []Category{CategoryMain, CategoryCondition, CategoryService, CategoryLocation, CategoryOther} {
		assert.True(t, c.IsValid(), "Category(%q)", string(c))
	}
	assert.False(t, CategoryUnset.IsValid())
	assert.False(t, Category("blog").IsValid())
}

func TestNotificationStatus(t *testing.T) {
	tests := []struct {
		status   NotificationStatus
		valid    bool
		severity int
		str      string
	}{
		{NotificationSuccess, true, 0, "success"},
		{NotificationWarning, true, 1, "warning"},
		{NotificationError, true, 2, "error"},
		{NotificationUnset, false, -1, "unset"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.status.IsValid())
		assert.Equal(t, tt.severity, tt.status.Severity())
		assert.Equal(t, tt.str, tt.status.String())
	}
}

func TestCheckStatus_IsValid(t *testing.T) {
	assert.True(t, CheckPass.IsValid())
	assert.True(t, CheckWarning.IsValid())
	assert.True(t, CheckFail.IsValid())
	assert.False(t, CheckUnset.IsValid())
	assert.Equal(t, "unset", CheckUnset.String())
}

func TestPageEntry_IsRoot(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/es", true},
		{"/es/", true},
		{"/about", false},
		{"/es/sobre-nosotros", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageEntry{Path: tt.path}.IsRoot(), tt.path)
	}
	assert.True(t, PageEntry{Locale: LocaleES}.IsSpanish())
	assert.False(t, PageEntry{Locale: LocaleEN}.IsSpanish())
}
