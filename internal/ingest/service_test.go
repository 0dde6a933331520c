package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-engine/internal/models"
)

// --- Mock FileStore ---

type mockFileStore struct {
	ListFilesFunc func(ctx context.Context, folderID string) ([]FileInfo, error)
	DownloadFunc  func(ctx context.Context, fileID string) ([]byte, error)
}

func (m *mockFileStore) ListFiles(ctx context.Context, folderID string) ([]FileInfo, error) {
	if m.ListFilesFunc != nil {
		return m.ListFilesFunc(ctx, folderID)
	}
	return nil, fmt.Errorf("ListFilesFunc not implemented")
}

func (m *mockFileStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, fileID)
	}
	return nil, fmt.Errorf("DownloadFunc not implemented")
}

// --- Mock Upserter ---

type upsertCall struct {
	Table   string
	Records []map[string]interface{}
	Keys    []string
}

type mockUpserter struct {
	mu         sync.Mutex
	UpsertFunc func(ctx context.Context, table string, records []map[string]interface{}, keys []string) error
	Calls      []upsertCall
}

func (m *mockUpserter) Upsert(ctx context.Context, table string, records []map[string]interface{}, keys []string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, upsertCall{Table: table, Records: records, Keys: keys})
	m.mu.Unlock()
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, table, records, keys)
	}
	return nil
}

// --- Mock FeatureRefresher ---

type mockRefresher struct {
	mu          sync.Mutex
	RefreshFunc func(ctx context.Context) error
	Count       int
}

func (m *mockRefresher) RefreshFeatures(ctx context.Context) error {
	m.mu.Lock()
	m.Count++
	m.mu.Unlock()
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx)
	}
	return nil
}

const portfolioCSV = "Customer ID,Balance,Date\nC001,\"$1,000.00\",2024-01-10\nC002,$250.50,2024-01-11\n"

func newTestService(files *mockFileStore, store *mockUpserter, refresher *mockRefresher) *Service {
	return NewService(files, store, refresher, Config{Workers: 1})
}

func singleFileStore(fi FileInfo, data []byte) *mockFileStore {
	return &mockFileStore{
		ListFilesFunc: func(ctx context.Context, folderID string) ([]FileInfo, error) {
			return []FileInfo{fi}, nil
		},
		DownloadFunc: func(ctx context.Context, fileID string) ([]byte, error) {
			return data, nil
		},
	}
}

func TestRunSuccessPath(t *testing.T) {
	fi := FileInfo{ID: "f1", Name: "portfolio_q1.csv", MediaType: "text/csv"}
	store := &mockUpserter{}
	refresher := &mockRefresher{}
	svc := newTestService(singleFileStore(fi, []byte(portfolioCSV)), store, refresher)

	report := svc.Run(context.Background(), "folder-1")

	require.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.TotalFiles)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	assert.Empty(t, report.Error)
	assert.True(t, report.MLFeaturesRefreshed)
	assert.Equal(t, 1, refresher.Count)

	require.Len(t, report.Details, 1)
	detail := report.Details[0]
	assert.Equal(t, models.StatusSuccess, detail.Status)
	assert.Equal(t, "Upserted 2 rows to raw_portfolios", detail.Message)
	assert.Equal(t, 2, detail.RowsProcessed)
	require.NotNil(t, detail.QualityScore)
	assert.Equal(t, 100.0, *detail.QualityScore)

	require.Contains(t, report.QualityScores, "portfolio_q1.csv")
	assert.Equal(t, 2, report.QualityScores["portfolio_q1.csv"].TotalRows)

	require.Len(t, store.Calls, 1)
	call := store.Calls[0]
	assert.Equal(t, "raw_portfolios", call.Table)
	require.Len(t, call.Records, 2)
	assert.Equal(t, 1000.0, call.Records[0]["balance"])
	assert.Equal(t, "C001", call.Records[0]["customer_id"])
	assert.Equal(t, "portfolio_q1.csv", call.Records[0]["workbook_name"])
	// No id column and no portfolio_name column: plain insert.
	assert.Nil(t, call.Keys)
}

func TestRunSkipsUnsupportedFileType(t *testing.T) {
	fi := FileInfo{ID: "f1", Name: "notes.pdf", MediaType: "application/pdf"}
	store := &mockUpserter{}
	refresher := &mockRefresher{}
	svc := newTestService(singleFileStore(fi, []byte("%PDF")), store, refresher)

	report := svc.Run(context.Background(), "folder-1")

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, models.StatusSkipped, report.Details[0].Status)
	assert.Equal(t, "Unsupported file type: application/pdf", report.Details[0].Message)
	assert.Empty(t, store.Calls)
	assert.Equal(t, 0, refresher.Count, "no successes, no feature refresh")
	assert.False(t, report.MLFeaturesRefreshed)
}

func TestRunSkipsUndetectableSourceType(t *testing.T) {
	fi := FileInfo{ID: "f1", Name: "random_export.csv", MediaType: "text/csv"}
	store := &mockUpserter{}
	svc := newTestService(singleFileStore(fi, []byte("a,b\n1,2\n")), store, &mockRefresher{})

	report := svc.Run(context.Background(), "folder-1")

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "Could not detect source type from filename", report.Details[0].Message)
	assert.Empty(t, store.Calls)
}

func TestRunFailsOnMissingRequiredColumns(t *testing.T) {
	fi := FileInfo{ID: "f1", Name: "portfolio_q1.csv", MediaType: "text/csv"}
	csv := "Customer ID,Notes\nC001,hello\n" // no balance, no date
	store := &mockUpserter{}
	svc := newTestService(singleFileStore(fi, []byte(csv)), store, &mockRefresher{})

	report := svc.Run(context.Background(), "folder-1")

	assert.Equal(t, 1, report.Failed)
	detail := report.Details[0]
	assert.Equal(t, models.StatusFailed, detail.Status)
	assert.Equal(t, "Missing required columns: balance, date", detail.Message)
	assert.Nil(t, detail.QualityScore, "validation fails before scoring")
	assert.Empty(t, store.Calls)
	assert.NotContains(t, report.QualityScores, "portfolio_q1.csv")
}

func TestRunFailsOnDownloadError(t *testing.T) {
	files := &mockFileStore{
		ListFilesFunc: func(ctx context.Context, folderID string) ([]FileInfo, error) {
			return []FileInfo{{ID: "f1", Name: "payments.csv", MediaType: "text/csv"}}, nil
		},
		DownloadFunc: func(ctx context.Context, fileID string) ([]byte, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}
	svc := newTestService(files, &mockUpserter{}, &mockRefresher{})

	report := svc.Run(context.Background(), "folder-1")

	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Details[0].Message, "connection reset")
}

func TestRunDownloadTimeoutMessage(t *testing.T) {
	files := &mockFileStore{
		ListFilesFunc: func(ctx context.Context, folderID string) ([]FileInfo, error) {
			return []FileInfo{{ID: "f1", Name: "payments.csv", MediaType: "text/csv"}}, nil
		},
		DownloadFunc: func(ctx context.Context, fileID string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := NewService(files, &mockUpserter{}, &mockRefresher{}, Config{
		Workers:         1,
		DownloadTimeout: 20 * time.Millisecond,
	})

	report := svc.Run(context.Background(), "folder-1")

	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Details[0].Message, "Download timed out")
}

func TestRunUpsertFailureStillRecordsQuality(t *testing.T) {
	fi := FileInfo{ID: "f1", Name: "portfolio_q1.csv", MediaType: "text/csv"}
	store := &mockUpserter{
		UpsertFunc: func(ctx context.Context, table string, records []map[string]interface{}, keys []string) error {
			return fmt.Errorf("relation does not exist")
		},
	}
	refresher := &mockRefresher{}
	svc := newTestService(singleFileStore(fi, []byte(portfolioCSV)), store, refresher)

	report := svc.Run(context.Background(), "folder-1")

	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Details[0].Message, "relation does not exist")
	// Quality metrics were computed before the persist attempt and stay on
	// the report.
	assert.Contains(t, report.QualityScores, "portfolio_q1.csv")
	assert.Equal(t, 0, refresher.Count)
}

func TestRunFeatureRefreshFailureIsRecordedNotRetried(t *testing.T) {
	fi := FileInfo{ID: "f1", Name: "portfolio_q1.csv", MediaType: "text/csv"}
	refresher := &mockRefresher{
		RefreshFunc: func(ctx context.Context) error { return fmt.Errorf("rpc unavailable") },
	}
	svc := newTestService(singleFileStore(fi, []byte(portfolioCSV)), &mockUpserter{}, refresher)

	report := svc.Run(context.Background(), "folder-1")

	assert.Equal(t, 1, report.Successful, "refresh failure does not retroactively fail persisted files")
	assert.False(t, report.MLFeaturesRefreshed)
	assert.Equal(t, 1, refresher.Count)
}

func TestRunListingFailureAbortsRun(t *testing.T) {
	files := &mockFileStore{
		ListFilesFunc: func(ctx context.Context, folderID string) ([]FileInfo, error) {
			return nil, fmt.Errorf("folder not found")
		},
	}
	svc := newTestService(files, &mockUpserter{}, &mockRefresher{})

	report := svc.Run(context.Background(), "missing")

	assert.Contains(t, report.Error, "folder not found")
	assert.Equal(t, 0, report.TotalFiles)
	assert.Empty(t, report.Details)
}

func TestRunNeverAbortsOnSingleFileFailure(t *testing.T) {
	files := &mockFileStore{
		ListFilesFunc: func(ctx context.Context, folderID string) ([]FileInfo, error) {
			return []FileInfo{
				{ID: "bad", Name: "payments_march.csv", MediaType: "text/csv"},
				{ID: "good", Name: "portfolio_q1.csv", MediaType: "text/csv"},
				{ID: "skip", Name: "readme.txt", MediaType: "text/plain"},
			}, nil
		},
		DownloadFunc: func(ctx context.Context, fileID string) ([]byte, error) {
			if fileID == "bad" {
				return nil, fmt.Errorf("boom")
			}
			return []byte(portfolioCSV), nil
		},
	}
	store := &mockUpserter{}
	svc := newTestService(files, store, &mockRefresher{})

	report := svc.Run(context.Background(), "folder-1")

	assert.Equal(t, 3, report.TotalFiles)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)

	// Details keep listing order regardless of processing order.
	assert.Equal(t, "payments_march.csv", report.Details[0].Filename)
	assert.Equal(t, "portfolio_q1.csv", report.Details[1].Filename)
	assert.Equal(t, "readme.txt", report.Details[2].Filename)
}

func TestRunDetailsKeepListingOrderWithWorkers(t *testing.T) {
	var infos []FileInfo
	for i := 0; i < 20; i++ {
		infos = append(infos, FileInfo{
			ID:        fmt.Sprintf("f%d", i),
			Name:      fmt.Sprintf("portfolio_%02d.csv", i),
			MediaType: "text/csv",
		})
	}
	files := &mockFileStore{
		ListFilesFunc: func(ctx context.Context, folderID string) ([]FileInfo, error) {
			return infos, nil
		},
		DownloadFunc: func(ctx context.Context, fileID string) ([]byte, error) {
			return []byte(portfolioCSV), nil
		},
	}
	svc := NewService(files, &mockUpserter{}, &mockRefresher{}, Config{Workers: 8})

	report := svc.Run(context.Background(), "folder-1")

	assert.Equal(t, 20, report.Successful)
	for i, d := range report.Details {
		assert.Equal(t, infos[i].Name, d.Filename)
	}
}

func TestRunCancelledContextMarksPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fi := FileInfo{ID: "f1", Name: "portfolio_q1.csv", MediaType: "text/csv"}
	files := &mockFileStore{
		ListFilesFunc: func(_ context.Context, folderID string) ([]FileInfo, error) {
			return []FileInfo{fi}, nil
		},
	}
	svc := newTestService(files, &mockUpserter{}, &mockRefresher{})

	report := svc.Run(ctx, "folder-1")

	assert.Equal(t, "run cancelled before completion", report.Error)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Details[0].Message, "cancelled")
}
