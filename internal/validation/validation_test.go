package validation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestPaymentSuccessQuery_Valid(t *testing.T) {
	v := New()

	if err := v.Struct(PaymentSuccessQuery{SessionID: "cs_test_a1b2c3"}); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestPaymentSuccessQuery_Invalid(t *testing.T) {
	v := New()

	for _, id := range []string{"", "cs_", "pi_123", strings.Repeat("x", 10)} {
		if err := v.Struct(PaymentSuccessQuery{SessionID: id}); err == nil {
			t.Fatalf("expected validation error for %q, got nil", id)
		}
	}
}

func TestContestStatusRequest(t *testing.T) {
	v := New()

	cases := []struct {
		from, to string
		ok       bool
	}{
		{"Pending", "Confirmed", true},
		{"Pending", "Rejected", true},
		{"Confirmed", "Closed", true},
		{"Closed", "Pending", false},
		{"Rejected", "Confirmed", false},
		{"Pending", "Archived", false},
		{"", "Closed", false},
	}
	for _, tc := range cases {
		err := v.Struct(ContestStatusRequest{From: tc.from, To: tc.to})
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s: expected valid, got %v", tc.from, tc.to, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s -> %s: expected error", tc.from, tc.to)
		}
	}
}

func TestBindQueryAndValidate_WritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPatch, "/payment-success?session_id=nope", nil)

	var q PaymentSuccessQuery
	if err := BindQueryAndValidate(c, &q, New()); err == nil {
		t.Fatal("expected error")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Fields["SessionID"] != "checkout_session" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}
