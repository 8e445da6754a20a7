package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emicklei/go-restful/v3"
)

func TestHandleError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := restful.NewResponse(rec)
	resp.SetRequestAccepts(restful.MIME_JSON)

	HandleError(resp, errors.New("boom"), http.StatusBadRequest)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}

	ok, present := body["ok"]
	if !present {
		t.Fatal("error envelope must carry the ok field")
	}
	if ok != false {
		t.Errorf("ok must be false on errors, got %v", ok)
	}
	if body["error"] != "boom" {
		t.Errorf("expected error message, got %v", body["error"])
	}
}
