package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrajoria/storefront-service/common/logger"
)

// Kind classifies an application error independently of its message.
type Kind string

const (
	KindActorNotFound      Kind = "actor_not_found"
	KindProductNotFound    Kind = "product_not_found"
	KindProductUnavailable Kind = "product_unavailable"
	KindEmptyCart          Kind = "empty_cart"
	KindInsufficientStock  Kind = "insufficient_stock"
	KindInvalidContact     Kind = "invalid_contact"
	KindCartChanged        Kind = "cart_changed"
	KindCheckoutInProgress Kind = "checkout_in_progress"
	KindInvalidInput       Kind = "invalid_input"
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindInternal           Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code     int                    `json:"code"`
	Kind     Kind                   `json:"kind"`
	Message  string                 `json:"message"`
	Redirect string                 `json:"redirect,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Err      error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so sentinels
// match copies made with Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Recoverable reports whether the caller can redisplay a prior screen
// instead of failing the request.
func (e *Error) Recoverable() bool {
	return e.Code < http.StatusInternalServerError
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func withRedirect(e *Error, to string) *Error {
	e.Redirect = to
	return e
}

// Cart and checkout error taxonomy
var (
	// ErrActorNotFound means the authenticated session names a profile that
	// does not exist. The message is deliberately generic.
	ErrActorNotFound   = New(http.StatusInternalServerError, KindActorNotFound, "Something went wrong, please sign in again", nil)
	ErrProductNotFound = withRedirect(New(http.StatusNotFound, KindProductNotFound, "Product not found", nil), "/products")
	// ErrProductUnavailable is the soft add-to-cart failure when stock is zero.
	ErrProductUnavailable = withRedirect(New(http.StatusConflict, KindProductUnavailable, "Sorry, this product is currently unavailable", nil), "/products")
	ErrEmptyCart          = withRedirect(New(http.StatusBadRequest, KindEmptyCart, "Your cart is empty, add products before placing an order", nil), "/cart")
	ErrInsufficientStock  = withRedirect(New(http.StatusConflict, KindInsufficientStock, "Insufficient stock", nil), "/cart")
	ErrInvalidContact     = withRedirect(New(http.StatusBadRequest, KindInvalidContact, "Contact details are incomplete", nil), "/cart/checkout")
	// ErrCartChanged means the cart was confirmed by another request after
	// this one read it.
	ErrCartChanged        = withRedirect(New(http.StatusConflict, KindCartChanged, "Your cart has changed, please review it", nil), "/cart")
	ErrCheckoutInProgress = withRedirect(New(http.StatusConflict, KindCheckoutInProgress, "This cart is already being checked out", nil), "/cart")
)

// Common error types
var (
	ErrInvalidInput   = New(http.StatusBadRequest, KindInvalidInput, "Invalid input", nil)
	ErrUnauthorized   = New(http.StatusUnauthorized, KindUnauthorized, "Unauthorized", nil)
	ErrNotFound       = New(http.StatusNotFound, KindNotFound, "Not found", nil)
	ErrInternalServer = New(http.StatusInternalServerError, KindInternal, "Internal server error", nil)
)

// InsufficientStock reports the first cart line whose quantity exceeds the
// product's current stock.
func InsufficientStock(productName string, available int) *Error {
	e := *ErrInsufficientStock
	e.Message = fmt.Sprintf("Sorry, product '%s' is only available in quantity %d", productName, available)
	e.Details = map[string]interface{}{
		"product_name": productName,
		"available":    available,
	}
	return &e
}

// StockShortage extracts the product name and available quantity from an
// InsufficientStock error.
func StockShortage(err error) (string, int, bool) {
	var appErr *Error
	if !stderrors.As(err, &appErr) || appErr.Kind != KindInsufficientStock || appErr.Details == nil {
		return "", 0, false
	}
	name, _ := appErr.Details["product_name"].(string)
	available, _ := appErr.Details["available"].(int)
	return name, available, true
}

// From converts any error into an *Error, hiding unknown causes behind a
// generic internal error.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.Wrap(err)
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := From(err)
		if !appErr.Recoverable() {
			logger.Error(c, "request failed", err, zap.String("kind", string(appErr.Kind)))
		}

		body := gin.H{"error": appErr.Message, "kind": appErr.Kind}
		if appErr.Redirect != "" {
			body["redirect"] = appErr.Redirect
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		c.AbortWithStatusJSON(appErr.Code, body)
	}
}
