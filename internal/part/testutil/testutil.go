package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitfantasy/partstock/internal/middleware"
	orderentity "github.com/bitfantasy/partstock/internal/order/entity"
	"github.com/bitfantasy/partstock/internal/part/entity"
	stockentity "github.com/bitfantasy/partstock/internal/stock/entity"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "partstock-jwt-secret-key-2026"

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// SetupTestDB creates an isolated in-memory database per test
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	// 共享内存库要求单连接，防止各连接看到不同的库
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.PartCategory{},
		&entity.Part{},
		&entity.BomItem{},
		&entity.PartParameterTemplate{},
		&entity.PartParameter{},
		&entity.CategoryParameterTemplate{},
		&entity.PartStar{},
		&stockentity.StockLocation{},
		&stockentity.StockItem{},
		&orderentity.Company{},
		&orderentity.SupplierPart{},
		&orderentity.SupplierPriceBreak{},
		&orderentity.BuildOrder{},
		&orderentity.BuildItem{},
		&orderentity.SalesOrder{},
		&orderentity.SalesOrderLine{},
		&orderentity.SalesOrderAllocation{},
		&orderentity.PurchaseOrder{},
		&orderentity.PurchaseOrderLine{},
	); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"perms": permissions,
		"iss":   "partstock",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken(
		"test-user-001",
		"Test Admin",
		"admin@test.com",
		[]string{"admin"},
		[]string{"*"},
	)
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedTestUser creates a test user in the database
func SeedTestUser(t *testing.T, db *gorm.DB, id, name, email string) *entity.User {
	t.Helper()
	user := &entity.User{
		ID:        id,
		Username:  "user_" + id,
		Name:      name,
		Email:     email,
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedPart creates a part with sensible defaults, applying overrides via fn
func SeedPart(t *testing.T, db *gorm.DB, name, ipn string, fn func(*entity.Part)) *entity.Part {
	t.Helper()
	id := uuid.New().String()[:32]
	part := &entity.Part{
		ID:           id,
		Name:         name,
		IPN:          ipn,
		Units:        "pcs",
		TreeID:       id,
		Active:       true,
		Component:    true,
		Purchaseable: true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if fn != nil {
		fn(part)
	}
	if err := db.Create(part).Error; err != nil {
		t.Fatalf("Failed to seed part %s: %v", name, err)
	}
	return part
}

// SeedLocation creates a stock location
func SeedLocation(t *testing.T, db *gorm.DB, name string) *stockentity.StockLocation {
	t.Helper()
	loc := &stockentity.StockLocation{
		ID:        uuid.New().String()[:32],
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(loc).Error; err != nil {
		t.Fatalf("Failed to seed location: %v", err)
	}
	return loc
}

// SeedStock creates a stock item for a part
func SeedStock(t *testing.T, db *gorm.DB, partID, locationID string, qty float64, fn func(*stockentity.StockItem)) *stockentity.StockItem {
	t.Helper()
	item := &stockentity.StockItem{
		ID:        uuid.New().String()[:32],
		PartID:    partID,
		Quantity:  qty,
		Status:    stockentity.StockStatusOK,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if locationID != "" {
		item.LocationID = &locationID
	}
	if fn != nil {
		fn(item)
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("Failed to seed stock item: %v", err)
	}
	return item
}
