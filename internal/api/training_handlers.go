package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/wormlab/untangle/internal/db"
	"github.com/wormlab/untangle/internal/httputil"
	"github.com/wormlab/untangle/internal/security"
	"github.com/wormlab/untangle/internal/worm"
	"github.com/wormlab/untangle/internal/wormfile"
)

// formatErrorDetail is one structural violation in an uploaded document,
// serialised for the 422 response body.
type formatErrorDetail struct {
	Code    string `json:"code"`
	Element string `json:"element,omitempty"`
	Message string `json:"message"`
}

func formatErrorDetails(errs wormfile.FormatErrors) []formatErrorDetail {
	details := make([]formatErrorDetail, len(errs))
	for i, e := range errs {
		details[i] = formatErrorDetail{
			Code:    string(e.Code),
			Element: e.Element,
			Message: e.Message,
		}
	}
	return details
}

// handleTraining covers the collection routes: list and upload.
func (s *Server) handleTraining(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTrainingSets(w, r)
	case http.MethodPost:
		s.uploadTrainingSet(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listTrainingSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.sets.List()
	if err != nil {
		log.Printf("list training sets: %v", err)
		httputil.InternalServerError(w, "failed to list training sets")
		return
	}
	if sets == nil {
		sets = []db.TrainingSet{}
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"training_sets": sets})
}

// uploadTrainingSet accepts a training-data XML document, rejects it with
// structured detail when either the structural or the semantic layer
// fails, and stores the canonical form otherwise.
func (s *Server) uploadTrainingSet(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	params, err := wormfile.Decode(body)
	if err != nil {
		var ferrs wormfile.FormatErrors
		if errors.As(err, &ferrs) {
			httputil.WriteValidationFailure(w, "document violates the training-data schema",
				formatErrorDetails(ferrs))
			return
		}
		httputil.BadRequest(w, "failed to read document: "+err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		httputil.WriteValidationFailure(w, "document is structurally valid but semantically inconsistent: "+err.Error(), nil)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "unnamed"
	}
	ts, err := s.sets.Insert(name, params)
	if err != nil {
		log.Printf("insert training set: %v", err)
		httputil.InternalServerError(w, "failed to store training set")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ts)
}

// handleTrainingItem routes /api/training/{id}[/...] subpaths.
func (s *Server) handleTrainingItem(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/training/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		httputil.BadRequest(w, "missing training set id")
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.getTrainingSet(w, r, id)
		case http.MethodDelete:
			s.deleteTrainingSet(w, r, id)
		default:
			httputil.MethodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "document":
		s.getTrainingDocument(w, r, id)
	case "score":
		s.scoreCandidate(w, r, id)
	case "scores":
		s.listScores(w, r, id)
	case "profile.png":
		s.renderProfilePNG(w, r, id)
	case "chart":
		s.renderProfileChart(w, r, id)
	default:
		httputil.NotFound(w, "unknown training set resource")
	}
}

func (s *Server) getTrainingSet(w http.ResponseWriter, r *http.Request, id string) {
	ts, err := s.sets.Get(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "no such training set")
		return
	}
	if err != nil {
		log.Printf("get training set %s: %v", id, err)
		httputil.InternalServerError(w, "failed to load training set")
		return
	}
	httputil.WriteJSONOK(w, ts)
}

func (s *Server) deleteTrainingSet(w http.ResponseWriter, r *http.Request, id string) {
	err := s.sets.Delete(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "no such training set")
		return
	}
	if err != nil {
		log.Printf("delete training set %s: %v", id, err)
		httputil.InternalServerError(w, "failed to delete training set")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"deleted": id})
}

func (s *Server) getTrainingDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ts, err := s.sets.Get(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "no such training set")
		return
	}
	if err != nil {
		log.Printf("get training document %s: %v", id, err)
		httputil.InternalServerError(w, "failed to load training set")
		return
	}
	if r.URL.Query().Get("download") == "1" {
		filename := security.SanitizeFilename(ts.Name) + ".xml"
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	httputil.WriteXML(w, http.StatusOK, []byte(ts.Document))
}

// scoreRequest is a candidate shape submitted for scoring.
type scoreRequest struct {
	Angles     []float64 `json:"angles"`
	Area       float64   `json:"area"`
	PathLength float64   `json:"path_length"`
}

// scoreCandidate scores one candidate against a stored record and logs
// the verdict.
func (s *Server) scoreCandidate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req scoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid score request: "+err.Error())
		return
	}

	params, err := s.sets.GetParams(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "no such training set")
		return
	}
	if err != nil {
		log.Printf("load params %s: %v", id, err)
		httputil.InternalServerError(w, "failed to load training set")
		return
	}

	scorer, err := worm.NewScorer(params)
	if err != nil {
		log.Printf("scorer for %s: %v", id, err)
		httputil.InternalServerError(w, "stored training set is unusable")
		return
	}

	verdict := scorer.Accept(worm.Candidate{
		Angles:     req.Angles,
		Area:       req.Area,
		PathLength: req.PathLength,
	})
	if _, err := s.scores.Insert(id, verdict); err != nil {
		log.Printf("log score for %s: %v", id, err)
	}
	httputil.WriteJSONOK(w, verdict)
}

func (s *Server) listScores(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	entries, err := s.scores.ListBySet(id, 200)
	if err != nil {
		log.Printf("list scores for %s: %v", id, err)
		httputil.InternalServerError(w, "failed to list scores")
		return
	}
	if entries == nil {
		entries = []db.ScoreEntry{}
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"scores": entries})
}
