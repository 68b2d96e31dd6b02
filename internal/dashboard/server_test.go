package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nibras/valet/internal/config"
	"github.com/nibras/valet/internal/db"
	"github.com/nibras/valet/internal/merge"
	"github.com/nibras/valet/internal/models"
	"github.com/nibras/valet/internal/staging"
)

type nopMerger struct{}

func (nopMerger) Merge(ctx context.Context, paths []string, outPath string) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *staging.Store, *merge.Manager) {
	t.Helper()
	gdb, err := db.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "dash_test.db"),
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := staging.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	merges, err := merge.NewManager(merge.ManagerOpts{Store: store, Merger: nopMerger{}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	router, err := newRouter(StartOpts{DB: gdb, Store: store, Merges: merges})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router, gdb, store, merges
}

func get(t *testing.T, router *gin.Engine, path string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w.Code, body
}

func TestHealthz(t *testing.T) {
	router, _, _, _ := newTestRouter(t)
	code, body := get(t, router, "/healthz")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", code, body)
	}
}

func TestMergeSessions(t *testing.T) {
	router, _, _, merges := newTestRouter(t)

	code, body := get(t, router, "/api/merge/sessions")
	if code != http.StatusOK || body["count"].(float64) != 0 {
		t.Errorf("empty sessions = %d %v", code, body)
	}

	merges.Begin("conv-1")
	merges.Add(context.Background(), "conv-1", "a.pdf", strings.NewReader("x"))

	_, body = get(t, router, "/api/merge/sessions")
	if body["count"].(float64) != 1 {
		t.Errorf("sessions after begin = %v", body)
	}
	sessions := body["sessions"].([]interface{})
	sess := sessions[0].(map[string]interface{})
	if sess["conversation"] != "conv-1" || sess["pending"].(float64) != 1 {
		t.Errorf("session = %v", sess)
	}
}

func TestStagingStats(t *testing.T) {
	router, _, store, _ := newTestRouter(t)

	f, err := store.Stage("conv-1", "a.txt", staging.OriginInbound, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	defer store.Release(f)

	_, body := get(t, router, "/api/staging")
	if body["artifacts"].(float64) != 1 || body["bytes"].(float64) != 5 {
		t.Errorf("staging stats = %v", body)
	}
}

func TestRecentNotes(t *testing.T) {
	router, gdb, _, _ := newTestRouter(t)
	gdb.Create(&models.Note{Conversation: "C1", Text: "remember this"})

	code, body := get(t, router, "/api/notes/recent")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	list := body["notes"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("notes = %v", list)
	}
}
