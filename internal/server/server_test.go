package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/desertthunder/imgset/internal/convert"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
	"github.com/desertthunder/imgset/internal/tasks"
	tu "github.com/desertthunder/imgset/internal/testing"
)

const testSecret = "test-secret"

type testServer struct {
	srv   *Server
	db    *sql.DB
	user  *models.User
	token string
}

func newTestServer(t *testing.T, configure ...func(*shared.Config)) *testServer {
	t.Helper()

	config := shared.DefaultConfig()
	config.Auth.Secret = testSecret
	config.Server.RateLimit = 0
	for _, fn := range configure {
		fn(config)
	}

	db := tu.MustOpenDB(t)
	srv, err := New(config, db, tu.MustOpenStore(t), shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	user := tu.SeedUser(t, db, "owner@example.com")
	token, err := IssueToken(testSecret, user.ID(), time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return &testServer{srv: srv, db: db, user: user, token: token}
}

func (ts *testServer) request(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.request(t, http.MethodGet, path, ts.token, nil, "")
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return ts.request(t, http.MethodPost, path, ts.token, bytes.NewReader(data), "application/json")
}

func (ts *testServer) upload(t *testing.T, csvfileID, field, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "digits.csv")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return ts.request(t, http.MethodPost, "/csvfiles/"+csvfileID+"/upload-csvfile", ts.token, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestTokens(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		token, err := IssueToken(testSecret, "user-1", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		user, err := ParseToken(testSecret, token)
		if err != nil || user != "user-1" {
			t.Errorf("expected user-1, got %q (%v)", user, err)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, _ := IssueToken(testSecret, "user-1", 0)
		if _, err := ParseToken("other", token); !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		token := expiredToken(t, "user-1")
		if _, err := ParseToken(testSecret, token); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("EmptySecret", func(t *testing.T) {
		if _, err := IssueToken("", "user-1", 0); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func expiredToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user": userID,
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	t.Run("HealthIsPublic", func(t *testing.T) {
		rec := ts.request(t, http.MethodGet, "/health", "", nil, "")
		expectStatus(t, rec, http.StatusOK)
		if got := decode[map[string]string](t, rec)["status"]; got != "ok" {
			t.Errorf("expected status ok, got %q", got)
		}
	})

	tests := []struct {
		name  string
		token string
	}{
		{"MissingToken", ""},
		{"GarbageToken", "not-a-jwt"},
		{"ExpiredToken", expiredToken(t, ts.user.ID())},
		{"UnknownUser", func() string { s, _ := IssueToken(testSecret, "ghost", 0); return s }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.request(t, http.MethodGet, "/labels", tt.token, nil, "")
			expectStatus(t, rec, http.StatusUnauthorized)
			if got := decode[errorPayload](t, rec).Code; got != "unauthorized" {
				t.Errorf("expected code unauthorized, got %q", got)
			}
		})
	}

	t.Run("MethodNotAllowed", func(t *testing.T) {
		rec := ts.request(t, http.MethodDelete, "/labels", ts.token, nil, "")
		expectStatus(t, rec, http.StatusMethodNotAllowed)
	})
}

func TestLabels(t *testing.T) {
	ts := newTestServer(t)

	for _, name := range []string{"cat", "dog", "ant"} {
		expectStatus(t, ts.postJSON(t, "/labels", map[string]string{"name": name}), http.StatusCreated)
	}

	t.Run("ListOrderedByNameDescending", func(t *testing.T) {
		rec := ts.get(t, "/labels")
		expectStatus(t, rec, http.StatusOK)
		labels := decode[[]models.LabelView](t, rec)
		var names []string
		for _, l := range labels {
			names = append(names, l.Name)
		}
		if strings.Join(names, ",") != "dog,cat,ant" {
			t.Errorf("expected dog,cat,ant, got %v", names)
		}
	})

	t.Run("SchemaRejectsBadBodies", func(t *testing.T) {
		for _, body := range []any{
			map[string]string{"name": ""},
			map[string]any{"name": 7},
			map[string]string{"name": "x", "color": "red"},
			map[string]string{},
		} {
			rec := ts.postJSON(t, "/labels", body)
			expectStatus(t, rec, http.StatusBadRequest)
			if got := decode[errorPayload](t, rec).Code; got != "invalid_input" {
				t.Errorf("expected invalid_input for %v, got %q", body, got)
			}
		}
	})

	t.Run("NotVisibleToOtherUsers", func(t *testing.T) {
		other := tu.SeedUser(t, ts.db, "other@example.com")
		token, _ := IssueToken(testSecret, other.ID(), 0)
		rec := ts.request(t, http.MethodGet, "/labels", token, nil, "")
		expectStatus(t, rec, http.StatusOK)
		if labels := decode[[]models.LabelView](t, rec); len(labels) != 0 {
			t.Errorf("expected no labels for another user, got %d", len(labels))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		created := decode[models.LabelView](t, ts.postJSON(t, "/labels", map[string]string{"name": "bird"}))
		csvfile := createCsvfile(t, ts, 1, 4)
		expectStatus(t, ts.upload(t, csvfile.ID, "file", "label,a,b,c,d\nbird,1,2,3,4\n"), http.StatusOK)
		rec := ts.postJSON(t, "/datasets", map[string]any{"name": "birds", "labels": []string{created.ID}, "csvfiles": []string{csvfile.ID}})
		expectStatus(t, rec, http.StatusCreated)
		dataset := decode[models.DatasetView](t, rec)

		other := tu.SeedUser(t, ts.db, "intruder@example.com")
		token, _ := IssueToken(testSecret, other.ID(), 0)
		expectStatus(t, ts.request(t, http.MethodDelete, "/labels/"+created.ID, token, nil, ""), http.StatusNotFound)

		expectStatus(t, ts.request(t, http.MethodDelete, "/labels/"+created.ID, ts.token, nil, ""), http.StatusNoContent)
		expectStatus(t, ts.request(t, http.MethodDelete, "/labels/"+created.ID, ts.token, nil, ""), http.StatusNotFound)

		t.Run("ConvertedImagesStayReadable", func(t *testing.T) {
			rec := ts.get(t, "/images?label="+created.ID)
			expectStatus(t, rec, http.StatusOK)
			images := decode[[]models.ImageView](t, rec)
			if len(images) != 1 {
				t.Fatalf("expected the converted image to survive, got %d", len(images))
			}

			rec = ts.get(t, "/images/"+images[0].ID)
			expectStatus(t, rec, http.StatusOK)
			if got := decode[models.ImageDetailView](t, rec).Label; got.ID != created.ID || got.Name != "bird" {
				t.Errorf("expected the deleted label in the detail view, got %+v", got)
			}
			expectStatus(t, ts.get(t, "/images/"+images[0].ID+"/bitmap"), http.StatusOK)
		})

		t.Run("DatasetDetailKeepsDeletedLabel", func(t *testing.T) {
			rec := ts.get(t, "/datasets/"+dataset.ID)
			expectStatus(t, rec, http.StatusOK)
			labels := decode[models.DatasetDetailView](t, rec).Labels
			if len(labels) != 1 || labels[0].ID != created.ID {
				t.Errorf("expected the deleted label nested in the detail, got %+v", labels)
			}
		})

		rec = ts.upload(t, csvfile.ID, "file", "label,a,b,c,d\nbird,1,2,3,4\n")
		expectStatus(t, rec, http.StatusBadRequest)
		if got := decode[errorPayload](t, rec).Code; got != "unknown_label" {
			t.Errorf("expected unknown_label after delete, got %q", got)
		}
	})
}

func createCsvfile(t *testing.T, ts *testServer, start, end int) models.CsvfileView {
	t.Helper()
	rec := ts.postJSON(t, "/csvfiles", map[string]any{
		"name": "digits", "description": "handwritten", "labelcol": 0, "imgcolstart": start, "imgcolend": end,
	})
	expectStatus(t, rec, http.StatusCreated)
	return decode[models.CsvfileView](t, rec)
}

func TestCsvfiles(t *testing.T) {
	t.Run("CreateAndDetail", func(t *testing.T) {
		ts := newTestServer(t)
		created := createCsvfile(t, ts, 1, 4)

		rec := ts.get(t, "/csvfiles/"+created.ID)
		expectStatus(t, rec, http.StatusOK)
		got := decode[models.CsvfileView](t, rec)
		if got.Name != "digits" || got.ImgColEnd != 4 || got.File != "" {
			t.Errorf("unexpected csvfile view: %+v", got)
		}
	})

	t.Run("OtherUsersGetNotFound", func(t *testing.T) {
		ts := newTestServer(t)
		created := createCsvfile(t, ts, 1, 4)
		other := tu.SeedUser(t, ts.db, "other@example.com")
		token, _ := IssueToken(testSecret, other.ID(), 0)

		rec := ts.request(t, http.MethodGet, "/csvfiles/"+created.ID, token, nil, "")
		expectStatus(t, rec, http.StatusNotFound)
	})

	t.Run("RejectsInvertedRange", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.postJSON(t, "/csvfiles", map[string]any{"name": "x", "labelcol": 0, "imgcolstart": 5, "imgcolend": 1})
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("AssignedOnly", func(t *testing.T) {
		ts := newTestServer(t)
		assigned := createCsvfile(t, ts, 1, 4)
		createCsvfile(t, ts, 1, 4)
		expectStatus(t, ts.postJSON(t, "/datasets", map[string]any{"name": "set", "csvfiles": []string{assigned.ID}}), http.StatusCreated)
		expectStatus(t, ts.postJSON(t, "/datasets", map[string]any{"name": "again", "csvfiles": []string{assigned.ID}}), http.StatusCreated)

		csvfiles := decode[[]models.CsvfileView](t, ts.get(t, "/csvfiles?assigned_only=1"))
		if len(csvfiles) != 1 || csvfiles[0].ID != assigned.ID {
			t.Errorf("expected only the assigned csvfile once, got %+v", csvfiles)
		}
		if all := decode[[]models.CsvfileView](t, ts.get(t, "/csvfiles")); len(all) != 2 {
			t.Errorf("expected 2 csvfiles, got %d", len(all))
		}
	})
}

func TestUpload(t *testing.T) {
	const catCSV = "label,p0,p1,p2,p3\ncat,0,34,154,29\n"

	t.Run("ConvertsRows", func(t *testing.T) {
		ts := newTestServer(t)
		tu.SeedLabel(t, ts.db, ts.user.ID(), "cat")
		csvfile := createCsvfile(t, ts, 1, 4)

		rec := ts.upload(t, csvfile.ID, "file", catCSV)
		expectStatus(t, rec, http.StatusOK)
		view := decode[models.CsvfileFileView](t, rec)
		if !strings.HasPrefix(view.File, shared.UploadDir+"/") || !strings.HasSuffix(view.File, ".csv") {
			t.Errorf("expected randomized upload path, got %q", view.File)
		}

		images := decode[[]models.ImageView](t, ts.get(t, "/images?csvfile="+csvfile.ID))
		if len(images) != 1 {
			t.Fatalf("expected 1 image, got %d", len(images))
		}
		if images[0].Name != csvfile.ID+"_0" || images[0].Row != 0 {
			t.Errorf("unexpected image: %+v", images[0])
		}

		detail := decode[models.ImageDetailView](t, ts.get(t, "/images/"+images[0].ID))
		if detail.Label.Name != "cat" || detail.Csvfile.ID != csvfile.ID {
			t.Errorf("unexpected detail: %+v", detail)
		}

		bitmap := ts.get(t, "/images/"+images[0].ID+"/bitmap")
		expectStatus(t, bitmap, http.StatusOK)
		gray, err := convert.DecodeBitmap(bitmap.Body.Bytes())
		if err != nil {
			t.Fatalf("failed to decode bitmap: %v", err)
		}
		if got := fmt.Sprint(gray.Pix); got != "[0 34 154 29]" {
			t.Errorf("expected pixels [0 34 154 29], got %s", got)
		}

		array := ts.get(t, "/images/"+images[0].ID+"/array")
		expectStatus(t, array, http.StatusOK)
		dense, err := convert.DecodeArray(array.Body.Bytes())
		if err != nil {
			t.Fatalf("failed to decode array: %v", err)
		}
		if got := dense.At(1, 0); got != 154.0/255.0 {
			t.Errorf("expected 154/255 at (1,0), got %v", got)
		}
	})

	t.Run("ReuploadDoesNotDuplicate", func(t *testing.T) {
		ts := newTestServer(t)
		tu.SeedLabel(t, ts.db, ts.user.ID(), "cat")
		csvfile := createCsvfile(t, ts, 1, 4)

		expectStatus(t, ts.upload(t, csvfile.ID, "file", catCSV), http.StatusOK)
		expectStatus(t, ts.upload(t, csvfile.ID, "file", catCSV), http.StatusOK)

		if images := decode[[]models.ImageView](t, ts.get(t, "/images")); len(images) != 1 {
			t.Errorf("expected 1 image after re-upload, got %d", len(images))
		}
	})

	t.Run("InvalidGeometry", func(t *testing.T) {
		ts := newTestServer(t)
		tu.SeedLabel(t, ts.db, ts.user.ID(), "cat")
		csvfile := createCsvfile(t, ts, 1, 14)

		rec := ts.upload(t, csvfile.ID, "file", catCSV)
		expectStatus(t, rec, http.StatusBadRequest)
		if got := decode[errorPayload](t, rec).Code; got != "invalid_geometry" {
			t.Errorf("expected invalid_geometry, got %q", got)
		}
		if images := decode[[]models.ImageView](t, ts.get(t, "/images")); len(images) != 0 {
			t.Errorf("expected no images, got %d", len(images))
		}
		if detail := decode[models.CsvfileView](t, ts.get(t, "/csvfiles/"+csvfile.ID)); detail.File != "" {
			t.Errorf("expected no file attached, got %q", detail.File)
		}
	})

	t.Run("UnknownLabelReportsRow", func(t *testing.T) {
		ts := newTestServer(t)
		tu.SeedLabel(t, ts.db, ts.user.ID(), "cat")
		csvfile := createCsvfile(t, ts, 1, 4)

		rec := ts.upload(t, csvfile.ID, "file", catCSV+"dog,1,2,3,4\n")
		expectStatus(t, rec, http.StatusBadRequest)
		payload := decode[errorPayload](t, rec)
		if payload.Code != "unknown_label" || payload.Row == nil || *payload.Row != 1 {
			t.Errorf("expected unknown_label at row 1, got %+v", payload)
		}
		if images := decode[[]models.ImageView](t, ts.get(t, "/images")); len(images) != 1 {
			t.Errorf("expected the row before the failure to persist, got %d images", len(images))
		}
	})

	t.Run("MissingFileField", func(t *testing.T) {
		ts := newTestServer(t)
		csvfile := createCsvfile(t, ts, 1, 4)

		rec := ts.upload(t, csvfile.ID, "attachment", catCSV)
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("TooLarge", func(t *testing.T) {
		ts := newTestServer(t, func(c *shared.Config) { c.Server.MaxUploadBytes = 64 })
		csvfile := createCsvfile(t, ts, 1, 4)

		rec := ts.upload(t, csvfile.ID, "file", catCSV+strings.Repeat("cat,1,2,3,4\n", 20))
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("OtherUsersCsvfile", func(t *testing.T) {
		ts := newTestServer(t)
		other := tu.SeedUser(t, ts.db, "other@example.com")
		csvfile := tu.SeedCsvfile(t, ts.db, other.ID(), 0, 1, 4)

		expectStatus(t, ts.upload(t, csvfile.ID(), "file", catCSV), http.StatusNotFound)
	})
}

func TestDatasets(t *testing.T) {
	ts := newTestServer(t)
	label := tu.SeedLabel(t, ts.db, ts.user.ID(), "cat")
	csvfile := createCsvfile(t, ts, 1, 4)

	rec := ts.postJSON(t, "/datasets", map[string]any{
		"name": "pets", "description": "small", "labels": []string{label.ID()}, "csvfiles": []string{csvfile.ID},
	})
	expectStatus(t, rec, http.StatusCreated)
	created := decode[models.DatasetView](t, rec)

	t.Run("Detail", func(t *testing.T) {
		detail := decode[models.DatasetDetailView](t, ts.get(t, "/datasets/"+created.ID))
		if len(detail.Labels) != 1 || detail.Labels[0].Name != "cat" {
			t.Errorf("expected nested label cat, got %+v", detail.Labels)
		}
		if len(detail.Csvfiles) != 1 || detail.Csvfiles[0].ID != csvfile.ID {
			t.Errorf("expected nested csvfile, got %+v", detail.Csvfiles)
		}
	})

	t.Run("List", func(t *testing.T) {
		datasets := decode[[]models.DatasetView](t, ts.get(t, "/datasets"))
		if len(datasets) != 1 || len(datasets[0].Labels) != 1 {
			t.Errorf("unexpected datasets: %+v", datasets)
		}
	})

	t.Run("LabelsAssignedOnly", func(t *testing.T) {
		tu.SeedLabel(t, ts.db, ts.user.ID(), "dog")
		labels := decode[[]models.LabelView](t, ts.get(t, "/labels?assigned_only=1"))
		if len(labels) != 1 || labels[0].ID != label.ID() {
			t.Errorf("expected only the assigned label, got %+v", labels)
		}
	})

	t.Run("RejectsForeignMembers", func(t *testing.T) {
		other := tu.SeedUser(t, ts.db, "other@example.com")
		foreign := tu.SeedLabel(t, ts.db, other.ID(), "cat")

		rec := ts.postJSON(t, "/datasets", map[string]any{"name": "stolen", "labels": []string{foreign.ID()}})
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("OtherUsersGetNotFound", func(t *testing.T) {
		other := tu.SeedUser(t, ts.db, "third@example.com")
		token, _ := IssueToken(testSecret, other.ID(), 0)
		rec := ts.request(t, http.MethodGet, "/datasets/"+created.ID, token, nil, "")
		expectStatus(t, rec, http.StatusNotFound)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("RateLimit", func(t *testing.T) {
		ts := newTestServer(t, func(c *shared.Config) {
			c.Server.RateLimit = 0.001
			c.Server.RateBurst = 1
		})
		expectStatus(t, ts.request(t, http.MethodGet, "/health", "", nil, ""), http.StatusOK)
		expectStatus(t, ts.request(t, http.MethodGet, "/health", "", nil, ""), http.StatusTooManyRequests)
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		ts := newTestServer(t, func(c *shared.Config) { c.Server.CORSOrigins = []string{"http://app.example"} })
		req := httptest.NewRequest(http.MethodOptions, "/labels", nil)
		req.Header.Set("Origin", "http://app.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		ts.srv.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example" {
			t.Errorf("expected allowed origin header, got %q", got)
		}
	})

	t.Run("Gzip", func(t *testing.T) {
		ts := newTestServer(t)
		for i := range 60 {
			tu.SeedLabel(t, ts.db, ts.user.ID(), fmt.Sprintf("label-%02d", i))
		}
		req := httptest.NewRequest(http.MethodGet, "/labels", nil)
		req.Header.Set("Authorization", "Bearer "+ts.token)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		ts.srv.ServeHTTP(rec, req)

		if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
			t.Errorf("expected gzip encoding, got %q", got)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		h := Recover(shared.NewLogger(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		expectStatus(t, rec, http.StatusInternalServerError)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: 14 columns", shared.ErrInvalidGeometry), http.StatusBadRequest, "invalid_geometry"},
		{&tasks.RowError{Row: 3, Err: shared.ErrPixelParse}, http.StatusBadRequest, "pixel_parse"},
		{&tasks.RowError{Row: 2, Err: errors.Join(shared.ErrStorage, errors.New("disk full"))}, http.StatusInternalServerError, "storage"},
		{fmt.Errorf("%w: image x", shared.ErrNotFound), http.StatusNotFound, "not_found"},
		{errors.New("surprise"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, payload := classify(tt.err)
			if status != tt.status || payload.Code != tt.code {
				t.Errorf("expected %d/%s, got %d/%s", tt.status, tt.code, status, payload.Code)
			}
		})
	}

	t.Run("RowIsReported", func(t *testing.T) {
		_, payload := classify(&tasks.RowError{Row: 3, Err: shared.ErrMalformedRow})
		if payload.Row == nil || *payload.Row != 3 {
			t.Errorf("expected row 3, got %v", payload.Row)
		}
	})

	t.Run("InternalMessageHidden", func(t *testing.T) {
		_, payload := classify(errors.New("secret detail"))
		if strings.Contains(payload.Error, "secret") {
			t.Errorf("internal error leaked: %q", payload.Error)
		}
	})
}
