package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"fulfillment-line/internal/types"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStatus(w io.Writer, snap types.LineSnapshot) error {
	fmt.Fprintf(w, "stations: %d  global queue: %d  shutting down: %v\n\n", snap.StationCount, snap.GlobalQueued, snap.ShuttingDown)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "STATION\tSTATE\tQUEUED\tPROCESSED")
	for _, name := range types.IngredientNames {
		fmt.Fprintf(tw, "\t%s", name)
	}
	fmt.Fprintln(tw)
	for _, st := range snap.Stations {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d", st.Index, stationState(st), st.Queued, st.Processed)
		for _, lvl := range st.Inventory {
			fmt.Fprintf(tw, "\t%d", lvl)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if snap.LastAlert != "" {
		fmt.Fprintf(w, "\nlast alert (#%d): %s\n", snap.AlertSeq, snap.LastAlert)
	}
	return nil
}

func stationState(st types.StationSnapshot) string {
	switch {
	case !st.Alive:
		return "DOWN"
	case !st.Running:
		return "PAUSED"
	case st.Busy:
		return "BUSY"
	default:
		return "IDLE"
	}
}

func writeStation(w io.Writer, format string, st types.StationSnapshot) error {
	if format == "json" {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "station %d: %s, queued %d, inventory %v\n", st.Index, stationState(st), st.Queued, st.Inventory)
	return nil
}

func writeOrders(w io.Writer, format string, orders []types.Order) error {
	if format == "json" {
		return writeJSON(w, orders)
	}
	for _, o := range orders {
		fmt.Fprintf(w, "order %d accepted: %s\n", o.ID, o.Requirement)
	}
	return nil
}
