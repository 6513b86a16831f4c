package httpapi

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"roadwatch/model"
	"roadwatch/predict"
)

var homeTmpl = template.Must(template.New("home").Parse(`<!doctype html>
<html>
<head>
<title>Real-Time Traffic Accident Prediction</title>
<style>
body { font-family: sans-serif; max-width: 900px; margin: 30px auto; }
input, button { padding: 8px; margin: 6px 0; width: 100%; }
table { border-collapse: collapse; width: 100%; margin-top: 16px; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
.error { color: #b00020; }
.severe { color: #b00020; font-weight: bold; }
</style>
</head>
<body>
<h1>Real-Time Traffic Accident Prediction</h1>
<form method="POST" action="/result">
<label>Features (comma separated):</label>
<input type="text" name="features" placeholder="e.g. 19.07,72.88,2,1,60,6" required>
<label>Latitude (optional):</label>
<input type="text" name="latitude" placeholder="e.g. 19.07">
<label>Longitude (optional):</label>
<input type="text" name="longitude" placeholder="e.g. 72.88">
<button type="submit">Predict</button>
</form>
<p><a href="/dashboard">Dashboard</a> | <a href="/download">Download CSV</a></p>

{{if .Error}}<p class="error">{{.Error}}</p>{{end}}

{{if .Results}}
<h2>Model Predictions</h2>
<table>
<tr><th>Model</th><th>Prediction</th><th>Probabilities</th></tr>
{{range .Results}}
<tr>
<td>{{.Model}}</td>
<td{{if .Severe}} class="severe"{{end}}>{{.Label}}</td>
<td>{{.Probs}}</td>
</tr>
{{end}}
</table>
<p>Classes: {{.ClassLabels}}</p>
{{end}}
</body>
</html>`))

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!doctype html>
<html>
<head>
<title>Prediction History</title>
<style>
body { font-family: sans-serif; max-width: 1100px; margin: 30px auto; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; font-size: 14px; }
</style>
</head>
<body>
<h1>Prediction History</h1>
<p><a href="/">Back</a> | <a href="/download">Download CSV</a></p>
<table>
<tr>
<th>ID</th><th>Timestamp</th><th>Features</th><th>Lat</th><th>Lon</th>
{{range .ModelNames}}<th>{{.}}</th>{{end}}
</tr>
{{range .Rows}}
<tr>
<td>{{.ID}}</td><td>{{.Timestamp}}</td><td>{{.Features}}</td>
<td>{{.Latitude}}</td><td>{{.Longitude}}</td>
{{range .Labels}}<td>{{.}}</td>{{end}}
</tr>
{{end}}
</table>
</body>
</html>`))

type pageResult struct {
	Model  string
	Label  string
	Severe bool
	Probs  string
}

type pageData struct {
	Error       string
	Results     []pageResult
	ClassLabels string
}

func (h *Handlers) handleHome(w http.ResponseWriter, r *http.Request) {
	h.renderHome(w, http.StatusOK, pageData{})
}

func (h *Handlers) handleResultForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderHome(w, http.StatusBadRequest, pageData{Error: "malformed form submission"})
		return
	}

	raw := strings.TrimSpace(r.PostFormValue("features"))
	if raw == "" {
		h.renderHome(w, http.StatusBadRequest, pageData{Error: "features field is required"})
		return
	}
	features, err := parseFeatureList(raw)
	if err != nil {
		h.renderHome(w, http.StatusBadRequest, pageData{Error: err.Error()})
		return
	}

	lat, err := parseOptionalCoord(r.PostFormValue("latitude"))
	if err != nil {
		h.renderHome(w, http.StatusBadRequest, pageData{Error: "latitude must be a number"})
		return
	}
	lon, err := parseOptionalCoord(r.PostFormValue("longitude"))
	if err != nil {
		h.renderHome(w, http.StatusBadRequest, pageData{Error: "longitude must be a number"})
		return
	}

	ens, _, err := h.run(r, features, raw, lat, lon)
	if err != nil {
		var invalid *predict.InvalidInputError
		status := http.StatusInternalServerError
		if errors.As(err, &invalid) {
			status = http.StatusBadRequest
		}
		h.renderHome(w, status, pageData{Error: err.Error()})
		return
	}

	data := pageData{ClassLabels: strings.Join(model.ClassLabels, ", ")}
	for _, res := range ens.Results {
		pr := pageResult{
			Model:  res.Model,
			Label:  res.LabelName,
			Severe: res.Label == model.SevereClass,
		}
		if res.Probs != nil {
			parts := make([]string, len(res.Probs))
			for i, p := range res.Probs {
				parts[i] = strconv.FormatFloat(p, 'f', 4, 64)
			}
			pr.Probs = strings.Join(parts, ", ")
		}
		data.Results = append(data.Results, pr)
	}
	h.renderHome(w, http.StatusOK, data)
}

type dashboardRow struct {
	ID        int64
	Timestamp string
	Features  string
	Latitude  string
	Longitude string
	Labels    []string
}

func (h *Handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.Recent(10)
	if err != nil {
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	names := make([]string, len(h.models))
	for i, handle := range h.models {
		names[i] = handle.Name
	}

	rows := make([]dashboardRow, 0, len(records))
	for _, rec := range records {
		row := dashboardRow{
			ID:        rec.ID,
			Timestamp: rec.Timestamp.Format("2006-01-02 15:04:05"),
			Features:  rec.Features,
		}
		if rec.Latitude != nil {
			row.Latitude = strconv.FormatFloat(*rec.Latitude, 'g', -1, 64)
		}
		if rec.Longitude != nil {
			row.Longitude = strconv.FormatFloat(*rec.Longitude, 'g', -1, 64)
		}
		for _, handle := range h.models {
			row.Labels = append(row.Labels, rec.Labels[handle.Key])
		}
		rows = append(rows, row)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, map[string]interface{}{
		"ModelNames": names,
		"Rows":       rows,
	}); err != nil {
		h.log.Error("dashboard render failed", zap.Error(err))
	}
}

func (h *Handlers) renderHome(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := homeTmpl.Execute(w, data); err != nil {
		h.log.Error("page render failed", zap.Error(err))
	}
}

func parseFeatureList(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	features := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.New("features must be comma-separated numbers")
		}
		features = append(features, v)
	}
	return features, nil
}

func parseOptionalCoord(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
