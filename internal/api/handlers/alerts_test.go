package handlers

import (
	"net/http"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
	"github.com/sentinel-dlp/sentinel-dlp/internal/services"
)

func newAlertEnv(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	alertService := services.NewAlertService(repositories.NewAlertRepository(db), testLogger)
	h := NewAlertHandlers(alertService)

	r := gin.New()
	r.Use(seedIdentity(analystIdentity()))
	r.GET("/api/v1/alerts", h.ListAlertsHandler())
	r.GET("/api/v1/alerts/:id", h.GetAlertHandler())
	r.POST("/api/v1/alerts", h.CreateAlertHandler())
	r.PUT("/api/v1/alerts/:id", h.UpdateAlertHandler())
	r.DELETE("/api/v1/alerts/:id", h.DeleteAlertHandler())
	return r, mock
}

func TestListAlertsHandler_FiltersPassedThrough(t *testing.T) {
	r, mock := newAlertEnv(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alerts`).
		WithArgs("New", "High", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM alerts`).
		WithArgs("New", "High", "", "", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doJSON(t, r, http.MethodGet, "/api/v1/alerts?status=New&severity=High", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestGetAlertHandler_NotFound(t *testing.T) {
	r, mock := newAlertEnv(t)

	mock.ExpectQuery(`SELECT \* FROM alerts`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doJSON(t, r, http.MethodGet, "/api/v1/alerts/missing", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCreateAlertHandler_MissingTitle(t *testing.T) {
	r, _ := newAlertEnv(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/alerts", `{"severity":"High"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateAlertHandler_InvalidSeverity(t *testing.T) {
	r, _ := newAlertEnv(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/alerts",
		`{"title":"USB exfiltration","severity":"Apocalyptic"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "severity") {
		t.Errorf("error should name the severity field, got %s", w.Body.String())
	}
}

func TestCreateAlertHandler_OK(t *testing.T) {
	r, mock := newAlertEnv(t)

	mock.ExpectExec("INSERT INTO alerts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(t, r, http.MethodPost, "/api/v1/alerts",
		`{"title":"Bulk download of customer records","source":"Cloud Storage"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"severity":"Medium"`) {
		t.Error("expected severity to default to Medium")
	}
	if !strings.Contains(body, `"status":"New"`) {
		t.Error("expected status to default to New")
	}
}

func TestUpdateAlertHandler_EmptyPatch(t *testing.T) {
	r, _ := newAlertEnv(t)

	w := doJSON(t, r, http.MethodPut, "/api/v1/alerts/alert-1", `{}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDeleteAlertHandler_NotFound(t *testing.T) {
	r, mock := newAlertEnv(t)

	mock.ExpectQuery(`SELECT \* FROM alerts`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doJSON(t, r, http.MethodDelete, "/api/v1/alerts/missing", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
