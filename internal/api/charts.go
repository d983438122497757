package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"
	"tailscale.com/tsweb"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/db"
	"github.com/banshee-data/pixelset/internal/httputil"
	"github.com/banshee-data/pixelset/internal/monitoring"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// AttachDebugRoutes adds the dataset charts to the /debug/ index on mux.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("dataset", "Images per category", http.HandlerFunc(s.handleDatasetChart))
	debug.Handle("occupancy", "Painted-cell frequency of one category (?category=)", http.HandlerFunc(s.handleOccupancyChart))
}

func (s *Server) handleDatasetChart(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.CategoryCounts(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	x := make([]string, 0, len(counts))
	y := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		x = append(x, c.Name)
		y = append(y, opts.BarData{Value: c.Images})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "640px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Dataset", Subtitle: fmt.Sprintf("%d categories", len(counts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("images", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	renderPage(w, bar)
}

func (s *Server) handleOccupancyChart(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		httputil.BadRequest(w, "missing 'category' parameter")
		return
	}
	images, err := s.db.CategoryImages(r.Context(), category)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	occ, used, err := Occupancy(images)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	rows, cols := occ.Dims()

	xs := make([]string, cols)
	for c := range xs {
		xs[c] = strconv.Itoa(c)
	}
	ys := make([]string, rows)
	for i := range ys {
		// echarts draws the first category at the bottom; flip so row 0 is on top
		ys[i] = strconv.Itoa(rows - 1 - i)
	}
	data := make([]opts.HeatMapData, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{col, rows - 1 - row, occ.At(row, col)}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "720px", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: category, Subtitle: fmt.Sprintf("%d of %d images, %dx%d", used, len(images), rows, cols)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: []string{"#ffffff", "#313695"}},
		}),
	)
	hm.SetXAxis(xs).AddSeries("painted", data)
	renderPage(w, hm)
}

// Occupancy returns, per cell, the fraction of images that paint it. Only
// images with the dimensions of the first decodable image are counted; used
// reports how many.
func Occupancy(images []db.Image) (occ *mat.Dense, used int, err error) {
	for _, img := range images {
		m, err := dataset.DecodeGrid(img.Data)
		if err != nil {
			monitoring.Logf("occupancy: skipping image %q: %v", img.Name, err)
			continue
		}
		rows, cols := m.Dims()
		if occ == nil {
			occ = mat.NewDense(rows, cols, nil)
		} else if r, c := occ.Dims(); r != rows || c != cols {
			continue
		}
		for row, cells := range m.Painted() {
			for col, painted := range cells {
				if painted {
					occ.Set(row, col, occ.At(row, col)+1)
				}
			}
		}
		used++
	}
	if occ == nil {
		return nil, 0, fmt.Errorf("no decodable images")
	}
	occ.Scale(1/float64(used), occ)
	return occ, used, nil
}

func renderPage(w http.ResponseWriter, chart components.Charter) {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(chart)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
