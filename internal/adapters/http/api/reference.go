package api

import (
	"net/http"

	"github.com/okian/pulsemap/internal/domain/colorscale"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/model"
)

// ReferenceHandler serves the legend and the date axis.
type ReferenceHandler struct {
	deps ReferenceDependencies
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(deps ReferenceDependencies) *ReferenceHandler {
	return &ReferenceHandler{deps: deps}
}

type legendResponse struct {
	Bands  []colorscale.Band `json:"bands"`
	NoData model.RGBA        `json:"no_data"`
}

type dateEntry struct {
	Index int             `json:"index"`
	Date  dateseq.DateKey `json:"date"`
}

type datesResponse struct {
	First dateseq.DateKey `json:"first"`
	Last  dateseq.DateKey `json:"last"`
	Count int             `json:"count"`
	Dates []dateEntry     `json:"dates"`
}

// HandleLegend handles GET /legend requests.
func (h *ReferenceHandler) HandleLegend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	bands := h.deps.Legend(ctx)
	if bands == nil {
		bands = []colorscale.Band{}
	}
	writeJSON(w, http.StatusOK, legendResponse{Bands: bands, NoData: h.deps.NoDataColor(ctx)})
}

// HandleDates handles GET /dates requests.
func (h *ReferenceHandler) HandleDates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	seq := h.deps.Dates(r.Context())
	if seq == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", nil)
		return
	}
	resp := datesResponse{
		First: seq.First(),
		Last:  seq.Last(),
		Count: seq.Len(),
		Dates: make([]dateEntry, 0, seq.Len()),
	}
	i := 0
	for d := range seq.All() {
		resp.Dates = append(resp.Dates, dateEntry{Index: i, Date: d})
		i++
	}
	writeJSON(w, http.StatusOK, resp)
}
