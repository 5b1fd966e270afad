package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormlab/untangle/internal/db"
)

const fixtureDoc = `<?xml version="1.0" encoding="UTF-8"?>
<training-data xmlns="http://www.cellprofiler.org/linked_files/schemas/UntangleWorms.xsd">
  <version>2</version>
  <min-area>120</min-area>
  <max-area>1450</max-area>
  <cost-threshold>100</cost-threshold>
  <num-control-points>5</num-control-points>
  <max-skel-length>155.5</max-skel-length>
  <min-path-length>84</min-path-length>
  <max-path-length>171</max-path-length>
  <median-worm-area>716</median-worm-area>
  <max-radius>4.8</max-radius>
  <overlap-weight>5</overlap-weight>
  <leftover-weight>10</leftover-weight>
  <training-set-size>260</training-set-size>
  <mean-angles>
    <value>0</value>
    <value>0</value>
    <value>0</value>
    <value>0</value>
    <value>0</value>
  </mean-angles>
  <radii-from-training>
    <value>1.1</value>
    <value>3.4</value>
    <value>4.7</value>
    <value>3.5</value>
    <value>1.2</value>
  </radii-from-training>
  <inv-angles-covariance-matrix>
    <values><value>1</value><value>0</value><value>0</value><value>0</value><value>0</value></values>
    <values><value>0</value><value>1</value><value>0</value><value>0</value><value>0</value></values>
    <values><value>0</value><value>0</value><value>1</value><value>0</value><value>0</value></values>
    <values><value>0</value><value>0</value><value>0</value><value>1</value><value>0</value></values>
    <values><value>0</value><value>0</value><value>0</value><value>0</value><value>1</value></values>
  </inv-angles-covariance-matrix>
</training-data>
`

// newTestServer builds a Server over a migrated throwaway database.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp())

	return NewServer(database)
}

// uploadFixture posts the fixture document and returns the stored set ID.
func uploadFixture(t *testing.T, s *Server, name string) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/training?name="+name,
		strings.NewReader(fixtureDoc))
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ts db.TrainingSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ts))
	require.NotEmpty(t, ts.ID)
	return ts.ID
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestSchemaEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "xs:schema")
	assert.Contains(t, rec.Body.String(), "UntangleWorms.xsd")
}

func TestUploadTrainingSet(t *testing.T) {
	t.Parallel()

	t.Run("valid document stored", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		id := uploadFixture(t, s, "plate-7")

		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/training/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var ts db.TrainingSet
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ts))
		assert.Equal(t, "plate-7", ts.Name)
		assert.Equal(t, 5, ts.NumControlPoints)
		assert.Equal(t, 260, ts.TrainingSetSize)
	})

	t.Run("structural violations return 422 with details", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		doc := strings.Replace(fixtureDoc, "  <cost-threshold>100</cost-threshold>\n", "", 1)

		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/training",
			strings.NewReader(doc)))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var body struct {
			Error   string              `json:"error"`
			Details []formatErrorDetail `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.NotEmpty(t, body.Details)
		assert.Equal(t, "missing-element", body.Details[0].Code)
		assert.Equal(t, "cost-threshold", body.Details[0].Element)
	})

	t.Run("semantic violations return 422", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		doc := strings.Replace(fixtureDoc, "<num-control-points>5</num-control-points>",
			"<num-control-points>7</num-control-points>", 1)

		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/training",
			strings.NewReader(doc)))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "mean-angles")
	})

	t.Run("garbage body returns 422", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/training",
			strings.NewReader("not xml at all")))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestListTrainingSets(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/training", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"training_sets":[]}`, rec.Body.String())

	uploadFixture(t, s, "one")
	uploadFixture(t, s, "two")

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/training", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sets []db.TrainingSet `json:"training_sets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Sets, 2)
}

func TestGetTrainingDocument(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	id := uploadFixture(t, s, "plate-7")

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/training/"+id+"/document", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, rec.Body.String(), "<training-data")
	assert.Contains(t, rec.Body.String(), "<num-control-points>5</num-control-points>")
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/training/"+id+"/document?download=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="plate-7.xml"`, rec.Header().Get("Content-Disposition"))
}

func TestScoreCandidate(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	id := uploadFixture(t, s, "plate-7")

	score := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
			"/api/training/"+id+"/score", strings.NewReader(body)))
		return rec
	}

	t.Run("acceptable candidate", func(t *testing.T) {
		rec := score(`{"angles":[0.1,0,0,0,0.1],"area":700,"path_length":120}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var v struct {
			Cost     float64 `json:"cost"`
			Accepted bool    `json:"accepted"`
			Reason   string  `json:"reason"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		assert.True(t, v.Accepted)
		assert.InDelta(t, 0.02, v.Cost, 1e-9)
	})

	t.Run("cost above threshold rejected", func(t *testing.T) {
		rec := score(`{"angles":[20,20,0,0,0],"area":700,"path_length":120}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "cost above threshold")
	})

	t.Run("verdicts logged", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/training/"+id+"/scores", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Scores []db.ScoreEntry `json:"scores"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Scores, 2)
	})

	t.Run("unknown set returns 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
			"/api/training/does-not-exist/score",
			strings.NewReader(`{"angles":[0,0,0,0,0],"area":700,"path_length":120}`)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad json returns 400", func(t *testing.T) {
		rec := score(`{"angles":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteTrainingSet(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	id := uploadFixture(t, s, "plate-7")

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/training/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/training/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/training/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileRendering(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	id := uploadFixture(t, s, "plate-7")

	t.Run("png profile", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/training/"+id+"/profile.png", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		// PNG magic bytes
		require.GreaterOrEqual(t, rec.Body.Len(), 8)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.Body.Bytes()[:4])
	})

	t.Run("html chart", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/training/"+id+"/chart", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "echarts")
	})

	t.Run("unknown set returns 404", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/training/missing/profile.png", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMethodChecks(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	id := uploadFixture(t, s, "plate-7")

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/training"},
		{http.MethodPost, "/api/training/" + id + "/document"},
		{http.MethodGet, "/api/training/" + id + "/score"},
		{http.MethodPut, "/api/training/" + id},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.path)
	}
}
