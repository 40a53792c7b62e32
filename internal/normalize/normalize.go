// Package normalize flattens fetched menu payloads into dish observations and
// canonicalizes the meal times the menu API reports.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/dining-menu-sync/internal/menu"
)

// Flatten walks meals -> stations -> items and returns one observation per
// named item, in payload order. A payload without meals yields nil: the
// location is closed for the day, which is not an error.
func Flatten(p menu.Payload) []menu.Observation {
	meals := Meals(p)
	if len(meals) == 0 {
		return nil
	}
	var out []menu.Observation
	for _, meal := range meals {
		window := Window(meal)
		for _, station := range meal.Stations {
			for _, entry := range station.Items {
				if entry.Item == nil || strings.TrimSpace(entry.Item.Name) == "" {
					continue
				}
				out = append(out, menu.Observation{
					Name:    entry.Item.Name,
					Station: station.Name,
					Meal:    window,
				})
			}
		}
	}
	return out
}

// Meals returns the meals in a payload, tolerating absent levels.
func Meals(p menu.Payload) []menu.Meal {
	if p.Data == nil || p.Data.DiningCourt == nil || p.Data.DiningCourt.DailyMenu == nil {
		return nil
	}
	return p.Data.DiningCourt.DailyMenu.Meals
}

// Window converts a meal into its canonical meal window.
func Window(meal menu.Meal) menu.MealWindow {
	return menu.MealWindow{
		Name:      meal.Name,
		StartTime: canonicalPtr(meal.StartTime),
		EndTime:   canonicalPtr(meal.EndTime),
	}
}

func canonicalPtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	hhmm, ok := CanonicalTime(*raw)
	if !ok {
		return nil
	}
	return &hhmm
}

// CanonicalTime converts an ISO-8601 timestamp or a 12-hour clock string into
// a zero-padded 24-hour HH:MM. The second return value is false when the input
// is outside both grammars.
func CanonicalTime(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if idx := strings.Index(raw, "T"); idx >= 0 {
		return isoClock(raw[idx+1:])
	}
	return twelveHourClock(raw)
}

func isoClock(rest string) (string, bool) {
	if len(rest) < 5 || rest[2] != ':' {
		return "", false
	}
	hour, err := strconv.Atoi(rest[:2])
	if err != nil || hour < 0 || hour > 23 {
		return "", false
	}
	minute, err := strconv.Atoi(rest[3:5])
	if err != nil || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// twelveHourClock accepts h:mm AM, hh:mm:ss pm, "5:00 p.m." and "5:00PM".
func twelveHourClock(raw string) (string, bool) {
	s := strings.ToUpper(strings.ReplaceAll(raw, ".", ""))
	s = strings.ReplaceAll(s, " ", "")
	var pm bool
	switch {
	case strings.HasSuffix(s, "AM"):
	case strings.HasSuffix(s, "PM"):
		pm = true
	default:
		return "", false
	}
	clock := s[:len(s)-2]
	parts := strings.Split(clock, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return "", false
	}
	hour, ok := clockField(parts[0], 1, 12, 1, 2)
	if !ok {
		return "", false
	}
	minute, ok := clockField(parts[1], 0, 59, 2, 2)
	if !ok {
		return "", false
	}
	if len(parts) == 3 {
		if _, ok := clockField(parts[2], 0, 59, 2, 2); !ok {
			return "", false
		}
	}
	hour %= 12
	if pm {
		hour += 12
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

func clockField(s string, lo, hi, minDigits, maxDigits int) (int, bool) {
	if len(s) < minDigits || len(s) > maxDigits {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}
