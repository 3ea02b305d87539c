package forecast

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// RenderChart writes an HTML line chart of recs with one series per
// building over the predicted months. Several predictions for the same
// building and month are averaged.
func RenderChart(w io.Writer, p period.Period, recs []model.PredictionRecord) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Utility forecast", Subtitle: "requested for " + p.String()}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Month"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Unit"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	var months []period.Period
	type key struct {
		building string
		month    period.Period
	}
	sums := map[key]float64{}
	counts := map[key]int{}
	var buildings []string
	for _, r := range recs {
		m := r.Predicted()
		if !slices.Contains(months, m) {
			months = append(months, m)
		}
		if !slices.Contains(buildings, r.Building) {
			buildings = append(buildings, r.Building)
		}
		k := key{r.Building, m}
		sums[k] += r.Prediction
		counts[k]++
	}
	slices.SortFunc(months, func(a, b period.Period) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})

	xAxis := make([]string, len(months))
	for i, m := range months {
		xAxis[i] = m.String()
	}
	line.SetXAxis(xAxis)
	for _, b := range buildings {
		data := make([]opts.LineData, len(months))
		for i, m := range months {
			k := key{b, m}
			if n := counts[k]; n > 0 {
				data[i] = opts.LineData{Value: sums[k] / float64(n)}
			} else {
				data[i] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(seriesName(b), data)
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func seriesName(building string) string {
	if _, err := strconv.Atoi(building); err == nil {
		return "building " + building
	}
	return building
}
