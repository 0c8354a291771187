package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"renthub/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSimpleRequirementIgnoresSubrole(t *testing.T) {
	req := Simple(models.RoleSeller)

	assert.True(t, req.Allows(models.RoleSeller, ""))
	assert.True(t, req.Allows(models.RoleSeller, "anything"))
	assert.False(t, req.Allows(models.RoleBuyer, ""))
}

func TestSubroleRequirementNarrowsRole(t *testing.T) {
	req := WithSubroles(models.RoleAdmin, "support", "finance")

	assert.True(t, req.Allows(models.RoleAdmin, "support"))
	assert.True(t, req.Allows(models.RoleAdmin, "finance"))
	assert.False(t, req.Allows(models.RoleAdmin, "intern"))
	assert.False(t, req.Allows(models.RoleAdmin, ""))
	assert.False(t, req.Allows(models.RoleSeller, "support"))
}

func guardedRouter(requirements ...RoleRequirement) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", RequireRole(requirements...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": c.GetString(ctxUserID)})
	})
	return r
}

func TestRequireRoleAdmitsMatchingCaller(t *testing.T) {
	r := guardedRouter(Simple(models.RoleAdmin), WithSubroles(models.RoleSeller, "premium"))

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(HeaderUserID, "A-00001")
	req.Header.Set(HeaderRole, models.RoleAdmin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(HeaderUserID, "S-00002")
	req.Header.Set(HeaderRole, models.RoleSeller)
	req.Header.Set(HeaderSubrole, "premium")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoleRejectsWrongOrMissingIdentity(t *testing.T) {
	r := guardedRouter(Simple(models.RoleAdmin))

	// No identity headers at all.
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong role.
	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(HeaderUserID, "B-00001")
	req.Header.Set(HeaderRole, models.RoleBuyer)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
