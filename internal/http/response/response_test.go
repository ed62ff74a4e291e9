package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/skillforge-backend/internal/platform/apierr"
)

func init() { gin.SetMode(gin.TestMode) }

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestRespondAPIErrorUsesStatusAndCode(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondAPIError(c, apierr.Conflict("stream_in_progress", errors.New("busy")))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != "stream_in_progress" || env.Error.Message != "busy" {
		t.Fatalf("envelope: %+v", env)
	}
}

func TestRespondAPIErrorHidesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondAPIError(c, errors.New("pq: relation does not exist"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Message != "internal server error" {
		t.Fatalf("leaked message: %q", env.Error.Message)
	}
	if len(c.Errors) != 1 {
		t.Fatalf("error not recorded on context")
	}
}

func TestRespondAPIErrorValidation(t *testing.T) {
	type body struct {
		Message string `validate:"required"`
	}
	err := validator.New().Struct(body{})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondBindError(c, err)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != "invalid_request" || len(env.Error.Fields) != 1 || env.Error.Fields[0].Rule != "required" {
		t.Fatalf("envelope: %+v", env)
	}
}
