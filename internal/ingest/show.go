package ingest

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/dining-menu-sync/internal/menu"
	"github.com/JakeFAU/dining-menu-sync/internal/normalize"
)

// Show prints each hall's menu for date grouped by meal and station. It
// never writes to the store. Halls whose fetch fails or that serve nothing
// are reported as having no data.
func Show(ctx context.Context, out io.Writer, source menu.Source, halls []menu.Hall, date string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := fmt.Fprintf(out, "Dining menus for %s\n\n", date); err != nil {
		return fmt.Errorf("write menu: %w", err)
	}
	for _, hall := range halls {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, _, err := source.FetchMenu(ctx, hall.Name, date)
		if err != nil {
			logger.Warn("menu fetch failed", zap.String("location", hall.Name), zap.Error(err))
		}
		if err := writeHall(out, hall.Name, normalize.Meals(payload)); err != nil {
			return fmt.Errorf("write menu: %w", err)
		}
	}
	return nil
}

func writeHall(out io.Writer, name string, meals []menu.Meal) error {
	ew := &errWriter{w: out}
	ew.printf("== %s ==\n", name)
	printed := false
	for _, meal := range meals {
		stations := make([]menu.Station, 0, len(meal.Stations))
		for _, st := range meal.Stations {
			if len(itemNames(st)) > 0 {
				stations = append(stations, st)
			}
		}
		ew.printf("  * %s:\n", meal.Name)
		printed = true
		for _, st := range stations {
			ew.printf("      > %s\n", st.Name)
			for _, item := range itemNames(st) {
				ew.printf("          - %s\n", item)
			}
		}
	}
	if !printed {
		ew.printf("  [No data found]\n")
	}
	ew.printf("\n")
	return ew.err
}

func itemNames(st menu.Station) []string {
	var names []string
	for _, it := range st.Items {
		if it.Item != nil && it.Item.Name != "" {
			names = append(names, it.Item.Name)
		}
	}
	return names
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
