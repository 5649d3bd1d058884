// Package tracker serves the script that tracked sites embed.
package tracker

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"
	"text/template"
	"time"
)

//go:embed cheahlytics.js.tmpl
var scriptSource string

var scriptTemplate = template.Must(template.New("cheahlytics.js").Parse(scriptSource))

type Handler struct {
	script  []byte
	modTime time.Time
}

// NewHandler renders the script once for publicURL.
func NewHandler(publicURL string) (*Handler, error) {
	endpoint, err := json.Marshal(strings.TrimRight(publicURL, "/") + "/api/events")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, map[string]string{"Endpoint": string(endpoint)}); err != nil {
		return nil, err
	}

	return &Handler{
		script:  buf.Bytes(),
		modTime: time.Now(),
	}, nil
}

// ScriptHandler godoc
// @Summary      Tracking script
// @Description  JavaScript exposing Cheahlytics.record(trackingCode, eventName)
// @Tags         tracker
// @Produce      application/javascript
// @Success      200 {string} string "Script"
// @Router       /cheahlytics.js [get]
func (h *Handler) ScriptHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	http.ServeContent(w, r, "cheahlytics.js", h.modTime, bytes.NewReader(h.script))
}
