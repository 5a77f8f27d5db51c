package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/beaconops/emergency-dispatch/internal/audit"
	"github.com/beaconops/emergency-dispatch/internal/config"
	"github.com/beaconops/emergency-dispatch/internal/dispatch"
	"github.com/beaconops/emergency-dispatch/internal/feed"
	"github.com/beaconops/emergency-dispatch/internal/intake"
	"github.com/beaconops/emergency-dispatch/internal/models"
	"github.com/beaconops/emergency-dispatch/internal/repository"
	"github.com/beaconops/emergency-dispatch/internal/sender"
)

// mockBook implements repository.ContactBook for testing
type mockBook struct {
	users    map[string]*models.User
	contacts []models.Contact
}

func newMockBook() *mockBook {
	return &mockBook{users: make(map[string]*models.User)}
}

func (m *mockBook) AddUser(ctx context.Context, u *models.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockBook) GetUser(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, errNotFound
}

func (m *mockBook) AddContact(ctx context.Context, c *models.Contact) error {
	m.contacts = append(m.contacts, *c)
	return nil
}

func (m *mockBook) ListContacts(ctx context.Context, userID string) ([]models.Contact, error) {
	var out []models.Contact
	for _, c := range m.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockBook) DeleteContact(ctx context.Context, id string) error {
	for i, c := range m.contacts {
		if c.ID == id {
			m.contacts = append(m.contacts[:i], m.contacts[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

// Reuse the repository sentinel so handler error mapping stays honest.
var errNotFound = repository.ErrNotFound

func setupTestRouter(t *testing.T, book *mockBook) (*gin.Engine, *audit.Log) {
	t.Helper()

	auditLog := audit.New(filepath.Join(t.TempDir(), "emergency_logs.txt"))
	d := dispatch.New(auditLog, 0)
	d.Register(sender.NewSMSSender())
	d.Register(sender.NewEmailSender())
	d.Register(sender.NewPushSender())
	d.Register(sender.NewAuthoritySender("911"))

	broadcaster := feed.NewBroadcaster()
	cfg := &config.Config{Worker: config.WorkerConfig{Count: 1, BufferSize: 5}}
	mgr := intake.NewManager(cfg, book, d, broadcaster)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(book, mgr, auditLog, broadcaster)
	handler.RegisterRoutes(router)
	return router, auditLog
}

func seededBook() *mockBook {
	book := newMockBook()
	book.contacts = []models.Contact{
		{ID: "c1", UserID: "user1", Name: "Jane", Phone: "+1", Email: "jane@example.com"},
		{ID: "c2", UserID: "user1", Name: "Mom", Phone: "+2"},
	}
	return book
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	buf, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestCreateIncident_DispatchesAllChannels(t *testing.T) {
	router, _ := setupTestRouter(t, seededBook())

	w := postJSON(router, "/api/incidents", gin.H{
		"user_id":   "user1",
		"message":   "help",
		"authority": "medical",
		"severity":  9,
		"location":  gin.H{"latitude": 40.7, "longitude": -74.0, "address": "Times Square"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Report feed.Report `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if len(resp.Report.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(resp.Report.Results))
	}
	for _, r := range resp.Report.Results {
		if !r.Outcome.Success {
			t.Errorf("expected success for %s, got %q", r.Alert.Channel, r.Outcome.Detail)
		}
	}
}

func TestCreateIncident_SMSScenario(t *testing.T) {
	router, _ := setupTestRouter(t, seededBook())

	w := postJSON(router, "/api/incidents", gin.H{
		"user_id":  "user1",
		"message":  "help",
		"channels": []string{"SMS"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Report feed.Report `json:"report"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if len(resp.Report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Report.Results))
	}
	r := resp.Report.Results[0]
	if !r.Outcome.Success || r.Outcome.Delivered != 2 {
		t.Errorf("expected success with 2 delivered, got %+v", r.Outcome)
	}
	if r.Alert.Status != models.StatusSent {
		t.Errorf("expected status sent, got %s", r.Alert.Status)
	}
}

func TestCreateIncident_MissingMessage(t *testing.T) {
	router, _ := setupTestRouter(t, seededBook())

	w := postJSON(router, "/api/incidents", gin.H{"user_id": "user1"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestAudit_ReadAndClear(t *testing.T) {
	router, _ := setupTestRouter(t, seededBook())

	// Dispatch writes audit blocks
	postJSON(router, "/api/incidents", gin.H{
		"user_id": "user1", "message": "help", "channels": []string{"SMS"},
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/audit", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp struct {
		Lines []string `json:"lines"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	records, err := audit.ParseRecords(resp.Lines)
	if err != nil {
		t.Fatalf("ParseRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if records[0].Status != models.StatusSent {
		t.Errorf("expected status sent, got %s", records[0].Status)
	}

	// Clear
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/audit", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 on clear, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/audit", nil)
	router.ServeHTTP(w, req)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Lines) != 0 {
		t.Errorf("expected empty audit log after clear, got %d lines", len(resp.Lines))
	}
}

func TestUsers_CreateAndGet(t *testing.T) {
	router, _ := setupTestRouter(t, newMockBook())

	w := postJSON(router, "/api/users", gin.H{
		"name": "John Doe", "email": "john@example.com", "phone": "+1234567890",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}

	var user models.User
	json.Unmarshal(w.Body.Bytes(), &user)
	if user.ID == "" {
		t.Fatal("expected user id assigned")
	}

	w2 := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/users/"+user.ID, nil)
	router.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w2.Code)
	}

	w3 := httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/users/nope", nil)
	router.ServeHTTP(w3, req)
	if w3.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w3.Code)
	}
}

func TestContacts_CreateListDelete(t *testing.T) {
	book := newMockBook()
	router, _ := setupTestRouter(t, book)

	w := postJSON(router, "/api/users/user1/contacts", gin.H{
		"name": "Jane", "phone": "+1", "relation": "Sister",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
	var contact models.Contact
	json.Unmarshal(w.Body.Bytes(), &contact)

	w2 := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/users/user1/contacts", nil)
	router.ServeHTTP(w2, req)
	var listResp struct {
		Contacts []models.Contact `json:"contacts"`
	}
	json.Unmarshal(w2.Body.Bytes(), &listResp)
	if len(listResp.Contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(listResp.Contacts))
	}

	w3 := httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/contacts/"+contact.ID, nil)
	router.ServeHTTP(w3, req)
	if w3.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w3.Code)
	}

	w4 := httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/contacts/"+contact.ID, nil)
	router.ServeHTTP(w4, req)
	if w4.Code != http.StatusNotFound {
		t.Errorf("expected status 404 on double delete, got %d", w4.Code)
	}
}

func TestHealth(t *testing.T) {
	router, _ := setupTestRouter(t, newMockBook())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}
