package api

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wormlab/untangle/internal/db"
	"github.com/wormlab/untangle/internal/httputil"
	"github.com/wormlab/untangle/internal/worm"
)

// loadParams fetches a stored record or writes the appropriate error.
func (s *Server) loadParams(w http.ResponseWriter, id string) (*worm.TrainingParams, bool) {
	params, err := s.sets.GetParams(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "no such training set")
		return nil, false
	}
	if err != nil {
		log.Printf("load params %s: %v", id, err)
		httputil.InternalServerError(w, "failed to load training set")
		return nil, false
	}
	return params, true
}

// renderProfilePNG plots the trained mean-angle and radius profiles along
// the worm body as a PNG.
func (s *Server) renderProfilePNG(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	params, ok := s.loadParams(w, id)
	if !ok {
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Worm profile (%d control points, n=%d)",
		params.NumControlPoints, params.TrainingSetSize)
	p.X.Label.Text = "control point"
	p.Y.Label.Text = "mean angle (rad) / radius (px)"

	anglePts := make(plotter.XYs, len(params.MeanAngles))
	for i, v := range params.MeanAngles {
		anglePts[i] = plotter.XY{X: float64(i), Y: v}
	}
	radiusPts := make(plotter.XYs, len(params.Radii))
	for i, v := range params.Radii {
		radiusPts[i] = plotter.XY{X: float64(i), Y: v}
	}

	angleLine, err := plotter.NewLine(anglePts)
	if err != nil {
		httputil.InternalServerError(w, "failed to build plot")
		return
	}
	radiusLine, err := plotter.NewLine(radiusPts)
	if err != nil {
		httputil.InternalServerError(w, "failed to build plot")
		return
	}
	radiusLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(angleLine, radiusLine)
	p.Legend.Add("mean angles", angleLine)
	p.Legend.Add("radii", radiusLine)

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		log.Printf("render profile png %s: %v", id, err)
		httputil.InternalServerError(w, "failed to render plot")
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		log.Printf("render profile png %s: %v", id, err)
		httputil.InternalServerError(w, "failed to render plot")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// renderProfileChart serves an interactive HTML chart of the same profiles.
func (s *Server) renderProfileChart(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	params, ok := s.loadParams(w, id)
	if !ok {
		return
	}

	xAxis := make([]string, params.NumControlPoints)
	angleData := make([]opts.LineData, params.NumControlPoints)
	radiusData := make([]opts.LineData, params.NumControlPoints)
	for i := 0; i < params.NumControlPoints; i++ {
		xAxis[i] = fmt.Sprintf("%d", i)
		angleData[i] = opts.LineData{Value: params.MeanAngles[i]}
		radiusData[i] = opts.LineData{Value: params.Radii[i]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Worm training profile", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Worm training profile",
			Subtitle: fmt.Sprintf("set=%s control points=%d samples=%d", id, params.NumControlPoints, params.TrainingSetSize),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis).
		AddSeries("mean angles", angleData).
		AddSeries("radii", radiusData)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		log.Printf("render profile chart %s: %v", id, err)
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
