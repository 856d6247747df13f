package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jeewaka-MediCare/record-service/internal/platform/auth"
)

func doJSON(t *testing.T, h *Handler, method, target, body string, actor *auth.Actor) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if actor != nil {
		req = req.WithContext(auth.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateRecordHandler(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	doctor := auth.Actor{ID: doctorID, Role: auth.RoleDoctor}
	f := newFixture(map[uuid.UUID]bool{doctorID: true})
	h := NewHandler(f.svc)

	t.Run("created", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/patients/"+patientID.String()+"/records",
			`{"title":"Annual Physical","content":"BP 120/80","tags":["checkup"]}`, &doctor)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var body recordResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Record.Title != "Annual Physical" || body.Version.VersionNo != 1 {
			t.Fatalf("unexpected response: %+v", body)
		}
	})

	t.Run("missing title", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/patients/"+patientID.String()+"/records",
			`{"content":"BP 120/80"}`, &doctor)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("no credential", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/patients/"+patientID.String()+"/records",
			`{"title":"x","content":"y"}`, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestUpdateRecordHandlerConflict(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	doctor := auth.Actor{ID: doctorID, Role: auth.RoleDoctor}
	f := newFixture(map[uuid.UUID]bool{doctorID: true})
	h := NewHandler(f.svc)

	created, _ := mustCreate(t, f, doctor, patientID, "Annual Physical", "BP 120/80")

	// Move the chain to version 2 first.
	rec := doJSON(t, h, http.MethodPut, "/api/v1/records/"+created.ID.String(),
		`{"content":"BP 122/82","expected_version":1}`, &doctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// A writer still presenting version 1 must get 409 plus the head.
	rec = doJSON(t, h, http.MethodPut, "/api/v1/records/"+created.ID.String(),
		`{"content":"BP 118/76","expected_version":1}`, &doctor)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Error          string   `json:"error"`
		CurrentVersion *Version `json:"current_version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if body.CurrentVersion == nil || body.CurrentVersion.VersionNo != 2 {
		t.Fatalf("conflict body must carry current version: %s", rec.Body.String())
	}
	if body.CurrentVersion.Content != "BP 122/82" {
		t.Fatalf("conflict body must carry winning content, got %q", body.CurrentVersion.Content)
	}
}

func TestGetRecordHandler(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	doctor := auth.Actor{ID: doctorID, Role: auth.RoleDoctor}
	patient := auth.Actor{ID: patientID, Role: auth.RolePatient}
	f := newFixture(map[uuid.UUID]bool{doctorID: true})
	h := NewHandler(f.svc)

	created, _ := mustCreate(t, f, doctor, patientID, "Annual Physical", "BP 120/80")

	t.Run("owning patient reads", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/records/"+created.ID.String(), "", &patient)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown record", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/records/"+uuid.NewString(), "", &doctor)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("deleted hidden from patient", func(t *testing.T) {
		if err := f.svc.Delete(context.Background(), doctor, created.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		rec := doJSON(t, h, http.MethodGet, "/api/v1/records/"+created.ID.String(), "", &patient)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestGetVersionHandler(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	doctor := auth.Actor{ID: doctorID, Role: auth.RoleDoctor}
	f := newFixture(map[uuid.UUID]bool{doctorID: true})
	h := NewHandler(f.svc)

	created, _ := mustCreate(t, f, doctor, patientID, "Annual Physical", "BP 120/80")

	t.Run("exact snapshot", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/records/"+created.ID.String()+"/versions/1", "", &doctor)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var v Version
		if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
			t.Fatalf("decode version: %v", err)
		}
		if v.Content != "BP 120/80" {
			t.Fatalf("unexpected content %q", v.Content)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/records/"+created.ID.String()+"/versions/9", "", &doctor)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("non-positive number is out of range", func(t *testing.T) {
		for _, n := range []string{"0", "-1"} {
			rec := doJSON(t, h, http.MethodGet, "/api/v1/records/"+created.ID.String()+"/versions/"+n, "", &doctor)
			if rec.Code != http.StatusNotFound {
				t.Fatalf("version %s: expected 404, got %d", n, rec.Code)
			}
		}
	})

	t.Run("malformed number", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/records/"+created.ID.String()+"/versions/zero", "", &doctor)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
