package errors_test

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIsMatchesOnKind(t *testing.T) {
	wrapped := fmt.Errorf("finalize: %w", apperrors.InsufficientStock("B", 1))

	assert.True(t, stderrors.Is(wrapped, apperrors.ErrInsufficientStock))
	assert.False(t, stderrors.Is(wrapped, apperrors.ErrEmptyCart))
}

func TestWrapDoesNotMutateSentinel(t *testing.T) {
	cause := stderrors.New("connection reset")
	wrapped := apperrors.ErrInternalServer.Wrap(cause)

	assert.Nil(t, apperrors.ErrInternalServer.Err)
	assert.ErrorIs(t, wrapped, cause)
}

func TestStockShortage(t *testing.T) {
	name, available, ok := apperrors.StockShortage(apperrors.InsufficientStock("B", 1))
	require.True(t, ok)
	assert.Equal(t, "B", name)
	assert.Equal(t, 1, available)

	_, _, ok = apperrors.StockShortage(apperrors.ErrEmptyCart)
	assert.False(t, ok)
}

func TestErrorMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(apperrors.ErrorMiddleware())
	router.GET("/stock", func(c *gin.Context) {
		_ = c.Error(apperrors.InsufficientStock("B", 1))
	})
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(stderrors.New("pq: relation does not exist"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stock", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Sorry, product 'B' is only available in quantity 1", body["error"])
	assert.Equal(t, "insufficient_stock", body["kind"])
	assert.Equal(t, "/cart", body["redirect"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relation")
}
