package jobs

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
	"github.com/sentinel-dlp/sentinel-dlp/internal/config"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
	"github.com/sentinel-dlp/sentinel-dlp/internal/services"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeClassifier returns a canned verdict and counts calls.
type fakeClassifier struct {
	result *services.DocumentClassification
	err    error
	calls  int
}

func (f *fakeClassifier) ClassifyDocument(ctx context.Context, text string, metadata map[string]interface{}) (*services.DocumentClassification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeClassifier) ScoreUserActivity(ctx context.Context, features map[string]interface{}) (*services.AnomalyScore, error) {
	return nil, fmt.Errorf("not used in this test")
}

var alertCols = []string{
	"id", "title", "severity", "status", "source", "data_snapshot", "history", "occurred_at",
}

func unscoredAlertRow(id, snapshot string) []driver.Value {
	return []driver.Value{id, "Suspicious upload", "Medium", "New", "Email Gateway",
		[]byte(snapshot), []byte(`[]`), time.Now()}
}

func newClassifierJob(t *testing.T, classifier services.Classifier) (*AlertClassifierJob, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.MLConfig{Enabled: true, ScanInterval: time.Minute}
	return NewAlertClassifierJob(repositories.NewAlertRepository(db), classifier, cfg, testLogger), mock
}

func TestAlertClassifierJob_ScoresAndPersists(t *testing.T) {
	classifier := &fakeClassifier{
		result: &services.DocumentClassification{
			SensitivityScore: 0.91,
			Classification:   "Restricted",
			KeywordsFound:    []string{"ssn"},
		},
	}
	job, mock := newClassifierJob(t, classifier)

	mock.ExpectQuery(`SELECT \* FROM alerts`).
		WithArgs(scanBatchSize).
		WillReturnRows(sqlmock.NewRows(alertCols).
			AddRow(unscoredAlertRow("alert-1", `{"content":"SSN 123-45-6789"}`)...))
	mock.ExpectExec("UPDATE alerts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	job.runScan(context.Background())

	assert.Equal(t, 1, classifier.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertClassifierJob_SkipsAlertsWithoutContent(t *testing.T) {
	classifier := &fakeClassifier{}
	job, mock := newClassifierJob(t, classifier)

	mock.ExpectQuery(`SELECT \* FROM alerts`).
		WithArgs(scanBatchSize).
		WillReturnRows(sqlmock.NewRows(alertCols).
			AddRow(unscoredAlertRow("alert-1", `{"filename":"report.xlsx"}`)...))

	job.runScan(context.Background())

	assert.Equal(t, 0, classifier.calls, "alerts without captured content are never submitted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertClassifierJob_EngineUnavailableEndsScan(t *testing.T) {
	classifier := &fakeClassifier{
		err: fmt.Errorf("%w: connection refused", apperr.ErrClassificationUnavailable),
	}
	job, mock := newClassifierJob(t, classifier)

	// Two candidates, but the first classification failure aborts the scan.
	mock.ExpectQuery(`SELECT \* FROM alerts`).
		WithArgs(scanBatchSize).
		WillReturnRows(sqlmock.NewRows(alertCols).
			AddRow(unscoredAlertRow("alert-1", `{"content":"card number 4111"}`)...).
			AddRow(unscoredAlertRow("alert-2", `{"content":"internal memo"}`)...))

	job.runScan(context.Background())

	assert.Equal(t, 1, classifier.calls, "an unavailable engine ends the scan after the first failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertClassifierJob_DisabledStartReturns(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.MLConfig{Enabled: false}
	job := NewAlertClassifierJob(repositories.NewAlertRepository(db), &fakeClassifier{}, cfg, testLogger)

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return for a disabled classifier")
	}
}
