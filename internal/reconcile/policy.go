package reconcile

import (
	"fmt"

	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
)

// FieldMode selects how a field is written.
type FieldMode int

// Supported field modes.
const (
	// Overwrite replaces the stored value with the latest observation.
	Overwrite FieldMode = iota
	// Union appends the value to a stored array unless already present.
	Union
	// DefaultOnce sets the value only if the record lacks the field.
	DefaultOnce
	// ServerTime stores the commit timestamp assigned by the store.
	ServerTime
)

func (m FieldMode) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case Union:
		return "union"
	case DefaultOnce:
		return "default-once"
	case ServerTime:
		return "server-time"
	default:
		return fmt.Sprintf("FieldMode(%d)", int(m))
	}
}

// Record field names.
const (
	FieldName           = "name"
	FieldCategory       = "category"
	FieldCurrentStation = "currentStation"
	FieldLastServedDate = "lastServedDate"
	FieldLastServed     = "lastServed"
	FieldMealsServed    = "mealsServed"
	FieldStations       = "stations"
	FieldTags           = "tags"
	FieldScore          = "score"
	FieldAverageRating  = "averageRating"
	FieldLocations      = "locations"
)

// FieldRule writes one field with one mode.
type FieldRule struct {
	Field string
	Mode  FieldMode
}

// Policy lists the fields written to the location-scoped and global records.
// Fields not listed are never written, so stored values for them survive.
type Policy struct {
	Name   string
	Local  []FieldRule
	Global []FieldRule
}

// DailyPolicy is used by the daily menu upload.
var DailyPolicy = Policy{
	Name: "daily",
	Local: []FieldRule{
		{Field: FieldName, Mode: Overwrite},
		{Field: FieldCategory, Mode: Overwrite},
		{Field: FieldCurrentStation, Mode: Overwrite},
		{Field: FieldLastServedDate, Mode: Overwrite},
		{Field: FieldLastServed, Mode: ServerTime},
		{Field: FieldMealsServed, Mode: Union},
		{Field: FieldStations, Mode: Union},
		{Field: FieldTags, Mode: Overwrite},
		{Field: FieldScore, Mode: DefaultOnce},
		{Field: FieldAverageRating, Mode: DefaultOnce},
	},
	Global: []FieldRule{
		{Field: FieldName, Mode: Overwrite},
		{Field: FieldCategory, Mode: Overwrite},
		{Field: FieldTags, Mode: Overwrite},
		{Field: FieldLastServedDate, Mode: Overwrite},
		{Field: FieldLocations, Mode: Union},
	},
}

// HistoryPolicy is used by the backfill of past days. It does not stamp the
// server time since the dish was not served at commit time.
var HistoryPolicy = Policy{
	Name: "history",
	Local: []FieldRule{
		{Field: FieldName, Mode: Overwrite},
		{Field: FieldCategory, Mode: Overwrite},
		{Field: FieldCurrentStation, Mode: Overwrite},
		{Field: FieldLastServedDate, Mode: Overwrite},
		{Field: FieldMealsServed, Mode: Union},
		{Field: FieldStations, Mode: Union},
		{Field: FieldTags, Mode: Overwrite},
		{Field: FieldScore, Mode: DefaultOnce},
		{Field: FieldAverageRating, Mode: DefaultOnce},
	},
	Global: DailyPolicy.Global,
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", DailyPolicy.Name:
		return DailyPolicy, nil
	case HistoryPolicy.Name:
		return HistoryPolicy, nil
	default:
		return Policy{}, fmt.Errorf("unknown merge policy %q", name)
	}
}

// build turns candidate values into a partial update. Rules whose field has
// no candidate value are skipped.
func build(rules []FieldRule, values map[string]any) docstore.Fields {
	out := make(docstore.Fields, len(rules))
	for _, rule := range rules {
		if rule.Mode == ServerTime {
			out[rule.Field] = docstore.ServerTimestamp
			continue
		}
		v, ok := values[rule.Field]
		if !ok {
			continue
		}
		switch rule.Mode {
		case Union:
			out[rule.Field] = docstore.Union(v)
		case DefaultOnce:
			out[rule.Field] = docstore.DefaultOnce{Value: v}
		default:
			out[rule.Field] = v
		}
	}
	return out
}
