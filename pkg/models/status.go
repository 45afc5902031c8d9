package models

// ChangeFreq is the sitemaps.org <changefreq> hint
type ChangeFreq string

const (
	ChangeFreqUnset   ChangeFreq = ""
	ChangeFreqAlways  ChangeFreq = "always"
	ChangeFreqHourly  ChangeFreq = "hourly"
	ChangeFreqDaily   ChangeFreq = "daily"
	ChangeFreqWeekly  ChangeFreq = "weekly"
	ChangeFreqMonthly ChangeFreq = "monthly"
	ChangeFreqYearly  ChangeFreq = "yearly"
	ChangeFreqNever   ChangeFreq = "never"
)

// String implements fmt.Stringer for logging
func (c ChangeFreq) String() string {
	if c == "" {
		return "unset"
	}
	return string(c)
}

// IsValid returns true if the value is one the protocol accepts
func (c ChangeFreq) IsValid() bool {
	switch c {
	case ChangeFreqAlways, ChangeFreqHourly, ChangeFreqDaily, ChangeFreqWeekly,
		ChangeFreqMonthly, ChangeFreqYearly, ChangeFreqNever:
		return true
	}
	return false
}

// Locale is the language tree a page belongs to
type Locale string

const (
	LocaleUnset Locale = ""
	LocaleEN    Locale = "en"
	LocaleES    Locale = "es"
)

// String implements fmt.Stringer for logging
func (l Locale) String() string {
	if l == "" {
		return "unset"
	}
	return string(l)
}

// IsValid returns true if the locale is supported
func (l Locale) IsValid() bool {
	return l == LocaleEN || l == LocaleES
}

// Other returns the mirrored locale of a bilingual pair
func (l Locale) Other() Locale {
	if l == LocaleES {
		return LocaleEN
	}
	return LocaleES
}

// Category buckets pages into sub-sitemaps
type Category string

const (
	CategoryUnset     Category = ""
	CategoryMain      Category = "main"
	CategoryCondition Category = "condition"
	CategoryService   Category = "service"
	CategoryLocation  Category = "location"
	CategoryOther     Category = "other"
)

// String implements fmt.Stringer for logging
func (c Category) String() string {
	if c == "" {
		return "unset"
	}
	return string(c)
}

// IsValid returns true if the category is known
func (c Category) IsValid() bool {
	switch c {
	case CategoryMain, CategoryCondition, CategoryService, CategoryLocation, CategoryOther:
		return true
	}
	return false
}

// NotificationStatus is the outcome recorded for one notification attempt
type NotificationStatus string

const (
	NotificationUnset   NotificationStatus = ""
	NotificationSuccess NotificationStatus = "success"
	NotificationWarning NotificationStatus = "warning"
	NotificationError   NotificationStatus = "error"
)

// String implements fmt.Stringer for logging
func (s NotificationStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s NotificationStatus) IsValid() bool {
	switch s {
	case NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// Severity orders statuses so the worst of a set can be picked (error > warning > success)
func (s NotificationStatus) Severity() int {
	switch s {
	case NotificationSuccess:
		return 0
	case NotificationWarning:
		return 1
	case NotificationError:
		return 2
	}
	return -1
}

// CheckStatus is the outcome of one deployment validation check
type CheckStatus string

const (
	CheckUnset   CheckStatus = ""
	CheckPass    CheckStatus = "pass"
	CheckWarning CheckStatus = "warning"
	CheckFail    CheckStatus = "fail"
)

// String implements fmt.Stringer for logging
func (s CheckStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s CheckStatus) IsValid() bool {
	switch s {
	case CheckPass, CheckWarning, CheckFail:
		return true
	}
	return false
}
