package menu

import "time"

// LocationType discriminates the two kinds of location records.
type LocationType string

// Location types persisted in the type field of location records.
const (
	LocationDiningHall  LocationType = "diningHall"
	LocationDiningPoint LocationType = "diningPoints"
)

// Collections location records live in.
const (
	CollectionDiningHalls  = "diningHalls"
	CollectionDiningPoints = "diningPoints"
)

// Collection returns the collection records of type t are stored in.
func (t LocationType) Collection() string {
	if t == LocationDiningHall {
		return CollectionDiningHalls
	}
	return CollectionDiningPoints
}

// CategoryDiningHall is stamped on every dish served by a dining hall.
const CategoryDiningHall = "diningHall"

// MealWindow describes one meal period. Start and End hold canonical HH:MM
// strings; nil means the source time could not be parsed.
type MealWindow struct {
	Name      string  `json:"name" firestore:"name"`
	StartTime *string `json:"startTime" firestore:"startTime"`
	EndTime   *string `json:"endTime" firestore:"endTime"`
}

// Observation is one dish seen at one station during one meal.
type Observation struct {
	Name    string
	Station string
	Meal    MealWindow
}

// Hall pairs the display name the menu API knows with the storage id.
type Hall struct {
	Name string `mapstructure:"name"`
	ID   string `mapstructure:"id"`
}

// Location is a location record ready to be upserted.
type Location struct {
	ID      string
	Name    string
	Type    LocationType
	Address string
	Hours   string
	MenuURL string
}

// Payload mirrors the GraphQL response for getLocationMenu. Every level is a
// pointer or slice so absent keys decode to nil instead of failing.
type Payload struct {
	Data *PayloadData `json:"data"`
}

// PayloadData is the "data" envelope.
type PayloadData struct {
	DiningCourt *DiningCourt `json:"diningCourtByName"`
}

// DiningCourt is a single hall in the response.
type DiningCourt struct {
	Name      string     `json:"name"`
	DailyMenu *DailyMenu `json:"dailyMenu"`
}

// DailyMenu holds the meals served on the queried date.
type DailyMenu struct {
	Meals []Meal `json:"meals"`
}

// Meal is one meal period with its stations.
type Meal struct {
	Name      string    `json:"name"`
	StartTime *string   `json:"startTime"`
	EndTime   *string   `json:"endTime"`
	Stations  []Station `json:"stations"`
}

// Station groups items served at one counter.
type Station struct {
	Name  string        `json:"name"`
	Items []StationItem `json:"items"`
}

// StationItem wraps the item object the API nests one level down.
type StationItem struct {
	Item *Item `json:"item"`
}

// Item is a single dish.
type Item struct {
	Name string `json:"name"`
}

// RunReport summarizes one ingestion run for logs and notifications.
type RunReport struct {
	RunID            string    `json:"run_id"`
	Kind             string    `json:"kind"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Locations        int       `json:"locations"`
	LocationsSkipped int       `json:"locations_skipped"`
	Observations     int       `json:"observations"`
	OpsQueued        int       `json:"ops_queued"`
	BatchesCommitted int       `json:"batches_committed"`
	BatchesFailed    int       `json:"batches_failed"`
	SeededScores     int       `json:"seeded_scores"`
	Aborted          bool      `json:"aborted"`
	ErrorText        string    `json:"error_text,omitempty"`
}
