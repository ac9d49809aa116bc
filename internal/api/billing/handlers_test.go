package billing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/billing"
	"github.com/tenantry/tenantry/internal/db/repositories"
	"github.com/tenantry/tenantry/internal/middleware"
	"github.com/tenantry/tenantry/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	memberCols = []string{"id", "organization_id", "user_id", "role", "created_at"}
	orgCols    = []string{"id", "name", "slug", "plan", "billing_status", "created_at", "updated_at"}
)

func newBillingRouter(t *testing.T, defaultPlan string) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		db.Close()
	})
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	orgRepo := repositories.NewOrganizationRepository(sqlxDB)
	orgSvc := services.NewOrganizationService(services.NewAuthority(orgRepo), orgRepo,
		audit.NewRecorder(repositories.NewActivityRepository(sqlxDB), nil))
	h := NewHandlers(services.NewBillingService(orgSvc, billing.PlaceholderProvider{DefaultPlan: defaultPlan}))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.PrincipalKey, auth.Principal{Authenticated: true, UserID: "u1", Method: auth.MethodSession})
		c.Next()
	})
	r.GET("/billing/:orgId/summary", h.SummaryHandler())
	r.POST("/billing/:orgId/checkout", h.CheckoutHandler())
	r.POST("/billing/:orgId/portal", h.PortalHandler())
	return r, mock
}

func expectRole(mock sqlmock.Sqlmock, role string) {
	mock.ExpectQuery("FROM organization_members WHERE organization_id = \\$1 AND user_id = \\$2").
		WithArgs("org-1", "u1").
		WillReturnRows(sqlmock.NewRows(memberCols).AddRow("m-1", "org-1", "u1", role, time.Now()))
}

func serve(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestSummaryHandler(t *testing.T) {
	r, mock := newBillingRouter(t, "")
	expectRole(mock, "member")
	mock.ExpectQuery("FROM organizations WHERE id").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(orgCols).AddRow("org-1", "Acme", "acme", "pro", "past_due", time.Now(), time.Now()))

	w, body := serve(r, http.MethodGet, "/billing/org-1/summary", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	summary, _ := body["billing"].(map[string]interface{})
	if summary["plan"] != "pro" {
		t.Errorf("plan = %v, want pro", summary["plan"])
	}
	if summary["status"] != "past_due" {
		t.Errorf("status = %v, want past_due", summary["status"])
	}
}

func TestCheckoutHandler(t *testing.T) {
	tests := []struct {
		name        string
		defaultPlan string
		body        string
		want        string
	}{
		{"no body", "", "", "#checkout-not-configured-pro"},
		{"configured default", "team", "", "#checkout-not-configured-team"},
		{"explicit plan", "", `{"plan":"enterprise"}`, "#checkout-not-configured-enterprise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newBillingRouter(t, tt.defaultPlan)
			expectRole(mock, "owner")

			w, body := serve(r, http.MethodPost, "/billing/org-1/checkout", tt.body)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
			}
			if body["checkoutUrl"] != tt.want {
				t.Errorf("checkoutUrl = %v, want %s", body["checkoutUrl"], tt.want)
			}
		})
	}
}

func TestCheckoutHandler_MemberForbidden(t *testing.T) {
	r, mock := newBillingRouter(t, "")
	expectRole(mock, "member")

	w, body := serve(r, http.MethodPost, "/billing/org-1/checkout", `{"plan":"pro"}`)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if body["error"] != "Forbidden" {
		t.Errorf("error = %v, want Forbidden", body["error"])
	}
}

func TestCheckoutHandler_InvalidBody(t *testing.T) {
	r, _ := newBillingRouter(t, "")

	w, _ := serve(r, http.MethodPost, "/billing/org-1/checkout", `{"plan":`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPortalHandler(t *testing.T) {
	r, mock := newBillingRouter(t, "")
	expectRole(mock, "admin")

	w, body := serve(r, http.MethodPost, "/billing/org-1/portal", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body["portalUrl"] != "#billing-portal-not-configured" {
		t.Errorf("portalUrl = %v", body["portalUrl"])
	}
}
